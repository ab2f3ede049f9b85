package view

import "strings"

// Locale carries the display strings for one supported UI language.
// Exactly two locales ship: English (default) and French.
type Locale struct {
	Code        string
	SelfLabel   string
	SelfChat    string
	UnknownUser string
	GroupWith   string // format: GroupWith + joined names
	Yesterday   string
	Placeholder string
	weekdays    [7]string
	months      [12]string
	// dayFirst renders dates as "2 janv." instead of "Jan 2".
	dayFirst bool
}

var localeEN = Locale{
	Code:        "en",
	SelfLabel:   "You",
	SelfChat:    "Notes to self",
	UnknownUser: "Unknown user",
	GroupWith:   "Group with ",
	Yesterday:   "Yesterday",
	Placeholder: "Unknown discussion",
	weekdays:    [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
	months:      [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
}

var localeFR = Locale{
	Code:        "fr",
	SelfLabel:   "Vous",
	SelfChat:    "Notes perso",
	UnknownUser: "Utilisateur inconnu",
	GroupWith:   "Groupe avec ",
	Yesterday:   "Hier",
	Placeholder: "Discussion inconnue",
	weekdays:    [7]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"},
	months:      [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."},
	dayFirst:    true,
}

// SupportedLocales lists the shipped locale codes; the first is the default.
var SupportedLocales = []string{"en", "fr"}

// ResolveLocale maps a locale code to its table, falling back to English.
func ResolveLocale(code string) Locale {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "fr":
		return localeFR
	default:
		return localeEN
	}
}
