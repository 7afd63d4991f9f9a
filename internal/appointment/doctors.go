package appointment

type Doctor struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Specialization  string   `json:"specialization"`
	Location        string   `json:"location"`
	AvailableTimes  []string `json:"available_times"`
	Rating          float64  `json:"rating"`
	ExperienceYears int      `json:"experience_years"`
}

var directory = []Doctor{
	{
		ID:              "dr-sarah-johnson",
		Name:            "Dr. Sarah Johnson",
		Specialization:  "Cardiology",
		Location:        "City Hospital, New York",
		AvailableTimes:  []string{"09:00", "10:00", "11:00", "14:00", "15:00"},
		Rating:          4.8,
		ExperienceYears: 15,
	},
	{
		ID:              "dr-michael-chen",
		Name:            "Dr. Michael Chen",
		Specialization:  "Dermatology",
		Location:        "Skin Care Clinic, Los Angeles",
		AvailableTimes:  []string{"10:00", "11:00", "13:00", "16:00", "17:00"},
		Rating:          4.9,
		ExperienceYears: 12,
	},
	{
		ID:              "dr-emily-rodriguez",
		Name:            "Dr. Emily Rodriguez",
		Specialization:  "Pediatrics",
		Location:        "Children's Hospital, Chicago",
		AvailableTimes:  []string{"08:00", "09:00", "10:00", "14:00", "15:00"},
		Rating:          4.7,
		ExperienceYears: 18,
	},
	{
		ID:              "dr-david-kumar",
		Name:            "Dr. David Kumar",
		Specialization:  "Orthopedics",
		Location:        "Bone & Joint Center, Houston",
		AvailableTimes:  []string{"09:00", "11:00", "13:00", "15:00", "16:00"},
		Rating:          4.6,
		ExperienceYears: 20,
	},
}

// Doctors returns a copy of the directory.
func Doctors() []Doctor {
	out := make([]Doctor, len(directory))
	for i, d := range directory {
		d.AvailableTimes = append([]string(nil), d.AvailableTimes...)
		out[i] = d
	}
	return out
}

func findDoctor(id string) (Doctor, bool) {
	for _, d := range directory {
		if d.ID == id {
			return d, true
		}
	}
	return Doctor{}, false
}

func (d Doctor) offers(slot string) bool {
	for _, t := range d.AvailableTimes {
		if t == slot {
			return true
		}
	}
	return false
}
