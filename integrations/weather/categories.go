package weather

// Category keys
const (
	Sunny  = "sunny"
	Partly = "partly"
	Rainy  = "rainy"
	Stormy = "stormy"
	Snowy  = "snowy"
	Foggy  = "foggy"
	Hot    = "hot"
	Cold   = "cold"
)

type category struct {
	color    string
	emoji    string
	labels   []string
	messages []string
}

var categories = map[string]category{
	Sunny: {
		color:  "#00bfff",
		emoji:  "☀️",
		labels: []string{"Sunny", "Clear"},
		messages: []string{
			"It's a bright and sunny day, perfect for getting things done!",
			"Plenty of sunshine out there today ☀️",
			"Clear skies ahead. Hope your day's going just as smoothly.",
			"A nice and sunny day. Good vibes only!",
			"The sun's out and so are the good ideas.",
		},
	},
	Partly: {
		color:  "#5dade2",
		emoji:  "🌤️",
		labels: []string{"Partly Cloudy", "Fair", "Cloudy"},
		messages: []string{
			"A calm day with a few clouds. Great time to relax and explore.",
			"A little cloudy, but still a good day to create.",
			"Mild weather today. Perfect coding conditions.",
			"Partly cloudy skies, just enough shade to think clearly.",
			"Nice balance of sun and clouds out there today.",
		},
	},
	Rainy: {
		color:  "#3498db",
		emoji:  "🌧️",
		labels: []string{"Rain", "Showers", "Drizzle"},
		messages: []string{
			"Looks like some rain today. Ideal weather to stay in and build something cool.",
			"Rainy days are great for deep focus ☔",
			"Showers outside, ideas flowing inside.",
			"A cozy, rainy kind of day. Grab a drink and dive into some projects.",
			"It's raining. Maybe the universe is debugging too.",
		},
	},
	Stormy: {
		color:  "#1f3b73",
		emoji:  "⛈️",
		labels: []string{"Stormy", "Thunderstorms", "Windy"},
		messages: []string{
			"Stormy weather out there. Stay safe and keep creating.",
			"The weather's wild, but that's how innovation happens too.",
			"Windy day. Hang on to your ideas!",
			"Thunderstorms rolling through. Time to power up your imagination.",
		},
	},
	Snowy: {
		color:  "#aee1f9",
		emoji:  "❄️",
		labels: []string{"Snow", "Flurries"},
		messages: []string{
			"Snowflakes and code, both unique and beautiful ❄️",
			"Cold day out there. Perfect reason to stay warm and build something.",
			"It's freezing outside, but creativity never hibernates.",
			"Snowy weather. A good time for hot coffee and cool projects.",
			"Bundle up! It's chilly but inspiring.",
		},
	},
	Foggy: {
		color:  "#95a5a6",
		emoji:  "🌫️",
		labels: []string{"Foggy", "Hazy", "Misty"},
		messages: []string{
			"A bit foggy today. Clarity comes from good design.",
			"The world's a little hazy, but your vision doesn't have to be.",
			"Fog outside, focus inside.",
			"Hazy weather, clear thoughts.",
			"Misty day. Mysterious and inspiring.",
		},
	},
	Hot: {
		color:  "#ff914d",
		emoji:  "🌡️",
		labels: []string{"Hot", "Warm"},
		messages: []string{
			"Hot day ahead. Stay cool and keep creating.",
			"It's toasty outside. Good time to chill indoors.",
			"Warm weather and bright ideas ☀️",
			"Feels like summer. Perfect day for something new.",
			"The temperature's up, but so is the motivation.",
		},
	},
	Cold: {
		color:  "#00bcd4",
		emoji:  "🧊",
		labels: []string{"Cold"},
		messages: []string{
			"Crisp day ahead. Perfect for focused work.",
			"Chilly vibes, warm ideas.",
			"Bundle up and build something great.",
			"Cool air, clear mind.",
		},
	},
}

// Classify maps a WMO weather code and temperature to a category key. Nil
// inputs mean the value is unknown.
func Classify(code *int, tempC *float64) string {
	key := Partly
	if code != nil {
		switch *code {
		case 0:
			key = Sunny
		case 1, 2, 3:
			key = Partly
		case 45, 48:
			key = Foggy
		case 51, 53, 55, 56, 57, 61, 63, 65, 66, 67, 80, 81, 82:
			key = Rainy
		case 71, 73, 75, 77, 85, 86:
			key = Snowy
		case 95, 96, 99:
			key = Stormy
		}
	}

	if tempC != nil {
		wet := key == Stormy || key == Snowy || key == Rainy
		switch {
		case *tempC >= 28 && !wet:
			key = Hot
		case *tempC <= 5 && !wet:
			key = Cold
		}
	}
	return key
}
