// Package location maps a free-form address to the emergency contacts,
// shelters and safety advice for that area.
//
// Matching is a case-insensitive substring test against a fixed, ordered
// list of city keys. The first key contained in the address wins; addresses
// that match no key get the national defaults.
package location

import (
	"fmt"
	"strings"
)

// Contacts are the phone numbers and control room for one area.
type Contacts struct {
	State     string `json:"state"`
	Police    string `json:"police"`
	Fire      string `json:"fire"`
	Ambulance string `json:"ambulance"`
	Disaster  string `json:"disaster"`
	Control   string `json:"control"`
}

// Service is one row of the emergency services list.
type Service struct {
	Name        string `json:"name"`
	Number      string `json:"number"`
	Description string `json:"description"`
	Available   string `json:"available"`
	Priority    string `json:"priority"`
}

// Shelter is an evacuation site.
type Shelter struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Distance string `json:"distance"`
	Capacity string `json:"capacity"`
	Status   string `json:"status"`
	Type     string `json:"type"`
}

// Bundle is everything the emergency panel shows for an address.
type Bundle struct {
	Key        string    `json:"key,omitempty"` // matched city key, empty for the default
	Address    string    `json:"address"`
	Contacts   Contacts  `json:"contacts"`
	Services   []Service `json:"services"`
	Shelters   []Shelter `json:"shelters"`
	SafetyTips []string  `json:"safety_tips"`
}

// cityKeys is the match order.
var cityKeys = []string{
	"mumbai", "delhi", "bangalore", "chennai",
	"kolkata", "hyderabad", "pune", "ahmedabad",
}

func cityContacts(state, disaster, control string) Contacts {
	return Contacts{
		State:     state,
		Police:    "100",
		Fire:      "101",
		Ambulance: "102/108",
		Disaster:  disaster,
		Control:   control,
	}
}

var contactsByCity = map[string]Contacts{
	"mumbai":    cityContacts("Maharashtra", "022-22694725", "Mumbai Disaster Management - 022-22001111"),
	"delhi":     cityContacts("Delhi", "011-23438252", "Delhi Disaster Management - 011-23438252"),
	"bangalore": cityContacts("Karnataka", "080-22212020", "BBMP Emergency - 080-22660000"),
	"chennai":   cityContacts("Tamil Nadu", "044-25619999", "Greater Chennai Corporation - 044-25619999"),
	"kolkata":   cityContacts("West Bengal", "033-22143526", "Kolkata Municipal Corporation - 033-22861111"),
	"hyderabad": cityContacts("Telangana", "040-23450733", "GHMC Emergency - 040-23450050"),
	"pune":      cityContacts("Maharashtra", "020-26127394", "PMC Emergency - 020-26123456"),
	"ahmedabad": cityContacts("Gujarat", "079-26851111", "AMC Emergency - 079-26851111"),
}

// DefaultContacts apply when no city key matches.
var DefaultContacts = cityContacts("India", "1078", "National Emergency Response - 112")

// Resolve returns the bundle for address.
func Resolve(address string) Bundle {
	contacts := ContactsFor(address)
	return Bundle{
		Key:        MatchKey(address),
		Address:    address,
		Contacts:   contacts,
		Services:   Services(contacts),
		Shelters:   Shelters(address),
		SafetyTips: SafetyTips(address),
	}
}

// MatchKey returns the first city key contained in address, or "".
func MatchKey(address string) string {
	city := strings.ToLower(address)
	for _, key := range cityKeys {
		if strings.Contains(city, key) {
			return key
		}
	}
	return ""
}

// ContactsFor returns the contacts for address.
func ContactsFor(address string) Contacts {
	if c, ok := contactsByCity[MatchKey(address)]; ok {
		return c
	}
	return DefaultContacts
}

// Services expands contacts into the six-row services list. The local
// control room row splits Control on " - " into description and number,
// falling back to the disaster number.
func Services(c Contacts) []Service {
	controlName, controlNumber, found := strings.Cut(c.Control, " - ")
	if !found || controlNumber == "" {
		controlNumber = c.Disaster
	}

	return []Service{
		{Name: "Emergency Services (All)", Number: "112", Description: "Single emergency number for all services", Available: "24/7", Priority: "Critical"},
		{Name: "Police", Number: c.Police, Description: "Local police emergency", Available: "24/7", Priority: "Critical"},
		{Name: "Fire Brigade", Number: c.Fire, Description: "Fire emergency services", Available: "24/7", Priority: "Critical"},
		{Name: "Ambulance", Number: c.Ambulance, Description: "Medical emergency services", Available: "24/7", Priority: "Critical"},
		{Name: "Disaster Management", Number: c.Disaster, Description: fmt.Sprintf("%s disaster control room", c.State), Available: "24/7", Priority: "High"},
		{Name: "Local Control Room", Number: controlNumber, Description: controlName, Available: "24/7", Priority: "High"},
	}
}

var sheltersByCity = map[string][]Shelter{
	"mumbai": {
		{Name: "Shivaji Park Grounds", Address: "Shivaji Park, Dadar, Mumbai", Distance: "2.1 km", Capacity: "High (5000+)", Status: "Open", Type: "Primary Shelter"},
		{Name: "BKC Ground", Address: "Bandra Kurla Complex, Mumbai", Distance: "4.5 km", Capacity: "High (3000+)", Status: "Open", Type: "Emergency Shelter"},
		{Name: "Oval Maidan", Address: "Fort, Mumbai", Distance: "6.2 km", Capacity: "Medium (2000+)", Status: "Standby", Type: "Secondary Shelter"},
	},
	"delhi": {
		{Name: "Ramlila Maidan", Address: "Near Red Fort, Delhi", Distance: "3.2 km", Capacity: "High (10000+)", Status: "Open", Type: "Primary Shelter"},
		{Name: "Jawaharlal Nehru Stadium", Address: "Lodhi Road, New Delhi", Distance: "5.8 km", Capacity: "High (8000+)", Status: "Open", Type: "Emergency Shelter"},
		{Name: "Talkatora Stadium", Address: "President Estate, Delhi", Distance: "4.1 km", Capacity: "Medium (3000+)", Status: "Standby", Type: "Secondary Shelter"},
	},
	"bangalore": {
		{Name: "Kanteerava Stadium", Address: "Kasturba Road, Bangalore", Distance: "2.8 km", Capacity: "High (4000+)", Status: "Open", Type: "Primary Shelter"},
		{Name: "Palace Grounds", Address: "Jayamahal Road, Bangalore", Distance: "5.3 km", Capacity: "High (6000+)", Status: "Open", Type: "Emergency Shelter"},
		{Name: "Cubbon Park", Address: "Kasturba Road, Bangalore", Distance: "3.7 km", Capacity: "Medium (2500+)", Status: "Standby", Type: "Secondary Shelter"},
	},
}

// Shelters returns the shelters for address. Cities without a table get
// three generic sites named after the address.
func Shelters(address string) []Shelter {
	lower := strings.ToLower(address)
	for _, key := range cityKeys {
		shelters, ok := sheltersByCity[key]
		if ok && strings.Contains(lower, key) {
			return append([]Shelter(nil), shelters...)
		}
	}

	return []Shelter{
		{Name: "Local Community Center", Address: "Near " + address, Distance: "2.5 km", Capacity: "Medium (1500+)", Status: "Open", Type: "Primary Shelter"},
		{Name: "District Stadium", Address: "District Center, " + address, Distance: "4.2 km", Capacity: "High (3000+)", Status: "Standby", Type: "Emergency Shelter"},
		{Name: "Government School", Address: "Local Area, " + address, Distance: "1.8 km", Capacity: "Low (500+)", Status: "Open", Type: "Secondary Shelter"},
	}
}

var (
	coastalTips = []string{
		"Monitor monsoon and cyclone warnings during June-September",
		"Keep emergency kit with waterproof items during monsoon season",
		"Know flood-prone areas and alternate routes",
		"Stay updated with BMC flood alerts and traffic updates",
		"Keep important documents in waterproof containers",
	}
	delhiTips = []string{
		"Monitor air quality index during winter months",
		"Prepare for extreme temperature variations",
		"Keep masks ready for dust storms and pollution",
		"Stay hydrated during summer heat waves",
		"Know nearest metro stations for emergency transport",
	}
	generalTips = []string{
		"Stay informed through local emergency broadcast systems",
		"Keep emergency contact numbers saved offline",
		"Maintain emergency supplies: water, food, flashlight, radio",
		"Know your evacuation routes and assembly points",
		"Register with local disaster management authorities",
	}
)

// SafetyTips returns advice for address: coastal for Mumbai or any address
// mentioning "coastal", air-quality advice for Delhi, general otherwise.
func SafetyTips(address string) []string {
	lower := strings.ToLower(address)
	var tips []string
	switch {
	case strings.Contains(lower, "mumbai") || strings.Contains(lower, "coastal"):
		tips = coastalTips
	case strings.Contains(lower, "delhi"):
		tips = delhiTips
	default:
		tips = generalTips
	}
	return append([]string(nil), tips...)
}
