package model

type IconCategory string

const (
	IconSunny        IconCategory = "SUNNY"
	IconCloudy       IconCategory = "CLOUDY"
	IconRainy        IconCategory = "RAINY"
	IconPartlyCloudy IconCategory = "PARTLY_CLOUDY"
	IconNight        IconCategory = "NIGHT"
	IconUnknown      IconCategory = "UNKNOWN"
)

type WeatherSnapshot struct {
	TemperatureCelsius int          `json:"temperature_celsius"`
	Description        string       `json:"description"`
	Icon               IconCategory `json:"icon"`
}
