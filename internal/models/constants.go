package models

const (
	TimeOfDayMorning   = "Morning"
	TimeOfDayAfternoon = "Afternoon"
	TimeOfDayEvening   = "Evening"
	TimeOfDayNight     = "Night"

	SeasonSpring = "Spring"
	SeasonSummer = "Summer"
	SeasonFall   = "Fall"
	SeasonWinter = "Winter"
)
