// Package seasonal picks the site's color theme from the calendar.
package seasonal

import (
	"context"
	"time"
)

// Colors are CSS values applied as custom properties by the page
type Colors struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
}

// Theme is a named palette with a greeting
type Theme struct {
	Name    string `json:"name"`
	Colors  Colors `json:"colors"`
	Message string `json:"message"`
	Emoji   string `json:"emoji"`
}

var (
	Christmas = Theme{
		Name:    "Christmas",
		Colors:  Colors{"#c41e3a", "#165b33", "#ffd700", "rgba(196, 30, 58, 0.05)"},
		Message: "🎄 Happy Holidays! 🎅",
		Emoji:   "🎄",
	}
	Halloween = Theme{
		Name:    "Halloween",
		Colors:  Colors{"#ff6b35", "#6a0dad", "#000000", "rgba(255, 107, 53, 0.05)"},
		Message: "🎃 Happy Halloween! 👻",
		Emoji:   "🎃",
	}
	Valentines = Theme{
		Name:    "Valentines",
		Colors:  Colors{"#ff1744", "#ff4081", "#f50057", "rgba(255, 23, 68, 0.05)"},
		Message: "💝 Happy Valentine's Day! 💕",
		Emoji:   "💝",
	}
	StPatricks = Theme{
		Name:    "StPatricks",
		Colors:  Colors{"#00a651", "#ffc72c", "#169b62", "rgba(0, 166, 81, 0.05)"},
		Message: "☘️ Happy St. Patrick's Day! 🍀",
		Emoji:   "☘️",
	}
	IndependenceDay = Theme{
		Name:    "IndependenceDay",
		Colors:  Colors{"#b22234", "#3c3b6e", "#ffffff", "rgba(178, 34, 52, 0.05)"},
		Message: "🎆 Happy 4th of July! 🇺🇸",
		Emoji:   "🎆",
	}
	Thanksgiving = Theme{
		Name:    "Thanksgiving",
		Colors:  Colors{"#d2691e", "#ff8c00", "#8b4513", "rgba(210, 105, 30, 0.05)"},
		Message: "🦃 Happy Thanksgiving! 🍂",
		Emoji:   "🦃",
	}
	Spring = Theme{
		Name:    "Spring",
		Colors:  Colors{"#ff69b4", "#98d8c8", "#f7cac9", "rgba(255, 105, 180, 0.05)"},
		Message: "🌸 Happy Spring! 🌷",
		Emoji:   "🌸",
	}
	Summer = Theme{
		Name:    "Summer",
		Colors:  Colors{"#ffd700", "#00bfff", "#ff6347", "rgba(255, 215, 0, 0.05)"},
		Message: "☀️ Happy Summer! 🏖️",
		Emoji:   "☀️",
	}
	Autumn = Theme{
		Name:    "Autumn",
		Colors:  Colors{"#d2691e", "#ff8c00", "#8b0000", "rgba(210, 105, 30, 0.05)"},
		Message: "🍂 Happy Fall! 🍁",
		Emoji:   "🍂",
	}
	Winter = Theme{
		Name:    "Winter",
		Colors:  Colors{"#4fc3f7", "#b3e5fc", "#ffffff", "rgba(79, 195, 247, 0.05)"},
		Message: "❄️ Happy Winter! ⛄",
		Emoji:   "❄️",
	}
	Default = Theme{
		Name:    "Default",
		Colors:  Colors{"#3b82f6", "#8b5cf6", "#22d3ee", "rgba(59, 130, 246, 0.05)"},
		Message: "👋 Welcome!",
		Emoji:   "✨",
	}
)

// Current returns the theme for the local date of now. Independence Day and
// Thanksgiving are shown only to visitors in the USA.
func Current(now time.Time, isUSA bool) Theme {
	month, day := now.Month(), now.Day()

	switch {
	case month == time.December:
		return Christmas
	case month == time.October:
		return Halloween
	case month == time.February && day <= 14:
		return Valentines
	case month == time.March && day >= 10 && day <= 17:
		return StPatricks
	case month == time.July && day <= 7 && isUSA:
		return IndependenceDay
	case month == time.November && isUSA:
		return Thanksgiving
	case month >= time.March && month <= time.May:
		return Spring
	case month >= time.June && month <= time.August:
		return Summer
	case month == time.September || month == time.November:
		return Autumn
	case month == time.January || month == time.February:
		return Winter
	}
	return Default
}

// CountryChecker answers whether a visitor is in the USA
type CountryChecker interface {
	IsUSA(ctx context.Context, ip string) bool
}

// Resolver combines the calendar with the visitor's country
type Resolver struct {
	countries CountryChecker
	now       func() time.Time
}

// NewResolver creates a resolver. A nil checker treats every visitor as
// outside the USA.
func NewResolver(countries CountryChecker) *Resolver {
	return &Resolver{countries: countries, now: time.Now}
}

// Theme returns the current theme for the visitor at ip
func (r *Resolver) Theme(ctx context.Context, ip string) Theme {
	isUSA := false
	if r.countries != nil {
		isUSA = r.countries.IsUSA(ctx, ip)
	}
	return Current(r.now(), isUSA)
}
