package weather

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dukerupert/homesync/internal/model"
)

const unavailableDescription = "Not available"

// partlyCloudyPhrases covers the English and Spanish wording of the
// "few clouds" and "scattered clouds" conditions.
var partlyCloudyPhrases = []string{
	"few clouds",
	"scattered clouds",
	"pocas nubes",
	"nubes dispersas",
}

// Classify maps a condition group, its description and the icon code to a
// display category. Icon codes end in "d" during the day and "n" at night.
func Classify(main, description, icon string) model.IconCategory {
	switch main {
	case "Clear":
		if strings.HasSuffix(icon, "d") {
			return model.IconSunny
		}
		return model.IconNight
	case "Clouds":
		desc := strings.ToLower(description)
		for _, phrase := range partlyCloudyPhrases {
			if strings.Contains(desc, phrase) {
				return model.IconPartlyCloudy
			}
		}
		return model.IconCloudy
	case "Rain", "Drizzle", "Thunderstorm":
		return model.IconRainy
	default:
		return model.IconUnknown
	}
}

// ToSnapshot maps a report to the displayed snapshot. The temperature is
// truncated toward zero; only the first condition is used.
func ToSnapshot(r Report) model.WeatherSnapshot {
	snap := model.WeatherSnapshot{
		TemperatureCelsius: int(r.Temperature),
		Description:        unavailableDescription,
		Icon:               model.IconUnknown,
	}
	if len(r.Conditions) > 0 {
		c := r.Conditions[0]
		snap.Description = capitalize(c.Description)
		snap.Icon = Classify(c.Main, c.Description, c.Icon)
	}
	return snap
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToTitle(r)) + s[size:]
}
