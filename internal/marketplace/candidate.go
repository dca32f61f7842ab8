package marketplace

import "time"

const (
	CollarWhite = "white"
	CollarBlue  = "blue"
)

// Candidate is a job seeker profile. The matching engine never mutates it.
type Candidate struct {
	ID         string    `json:"id" mapstructure:"id"`
	FullName   string    `json:"full_name,omitempty" mapstructure:"full_name"`
	Collar     string    `json:"collar,omitempty" mapstructure:"collar"`
	Skills     string    `json:"skills" mapstructure:"skills"`
	Education  string    `json:"education" mapstructure:"education"`
	Experience string    `json:"experience" mapstructure:"experience"`
	UpdatedAt  time.Time `json:"updated_at" mapstructure:"updated_at"`
}

// Application is a submitted job application.
type Application struct {
	ID        string    `json:"id" mapstructure:"id"`
	UserID    string    `json:"user_id" mapstructure:"user_id"`
	JobID     string    `json:"job_id" mapstructure:"job_id"`
	CreatedAt time.Time `json:"created_at" mapstructure:"created_at"`
}

// Applications is a list of submitted applications.
type Applications []*Application

// JobIDs returns the job ids the applications point to.
func (a Applications) JobIDs() []string {
	ids := make([]string, 0, len(a))
	for _, app := range a {
		ids = append(ids, app.JobID)
	}
	return ids
}
