package fallback

import (
	"path"
	"strconv"
	"time"
)

type JobOffer struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Company        string `json:"company"`
	MunicipalityID int    `json:"municipalityId"`
	Location       string `json:"location"`
	ContractType   string `json:"contractType"`
	Salary         string `json:"salary"`
	Status         string `json:"status"`
	PublishedAt    string `json:"publishedAt"`
}

type JobApplication struct {
	ID         int    `json:"id"`
	JobOfferID int    `json:"jobOfferId"`
	UserID     int    `json:"userId"`
	Status     string `json:"status"`
	AppliedAt  string `json:"appliedAt"`
}

type Municipality struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Province   string `json:"province"`
	Population int    `json:"population"`
	Active     bool   `json:"active"`
}

type Course struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	Modality       string `json:"modality"`
	Hours          int    `json:"hours"`
	MunicipalityID int    `json:"municipalityId"`
	Status         string `json:"status"`
	Enrolled       int    `json:"enrolled"`
	Capacity       int    `json:"capacity"`
}

type Enrollment struct {
	ID         int    `json:"id"`
	CourseID   int    `json:"courseId"`
	UserID     int    `json:"userId"`
	Status     string `json:"status"`
	EnrolledAt string `json:"enrolledAt"`
}

type User struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	MunicipalityID int    `json:"municipalityId,omitempty"`
}

type DocumentStatus struct {
	UserID    int    `json:"userId"`
	Status    string `json:"status"`
	FileName  string `json:"fileName"`
	UpdatedAt string `json:"updatedAt"`
}

type Stats struct {
	Users          int `json:"users"`
	JobOffers      int `json:"jobOffers"`
	Applications   int `json:"applications"`
	Courses        int `json:"courses"`
	Enrollments    int `json:"enrollments"`
	Municipalities int `json:"municipalities"`
}

type Notification struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

var (
	jobOffers = []JobOffer{
		{ID: 1, Title: "Administrative assistant", Company: "Town hall services", MunicipalityID: 1, Location: "Northvale", ContractType: "full-time", Salary: "22000-25000", Status: "published", PublishedAt: "2024-01-15T09:00:00Z"},
		{ID: 2, Title: "Forklift operator", Company: "Logistics park", MunicipalityID: 2, Location: "Eastbridge", ContractType: "temporary", Salary: "19000", Status: "published", PublishedAt: "2024-01-22T09:00:00Z"},
		{ID: 3, Title: "Junior web developer", Company: "Local digital agency", MunicipalityID: 1, Location: "Northvale", ContractType: "full-time", Salary: "26000-30000", Status: "closed", PublishedAt: "2023-12-04T09:00:00Z"},
	}
	jobApplications = []JobApplication{
		{ID: 1, JobOfferID: 1, UserID: 3, Status: "pending", AppliedAt: "2024-01-16T10:30:00Z"},
		{ID: 2, JobOfferID: 1, UserID: 4, Status: "reviewed", AppliedAt: "2024-01-17T12:00:00Z"},
		{ID: 3, JobOfferID: 2, UserID: 3, Status: "rejected", AppliedAt: "2024-01-23T08:15:00Z"},
	}
	municipalities = []Municipality{
		{ID: 1, Name: "Northvale", Province: "Central", Population: 12450, Active: true},
		{ID: 2, Name: "Eastbridge", Province: "Central", Population: 8320, Active: true},
		{ID: 3, Name: "Southmere", Province: "Coast", Population: 3105, Active: false},
	}
	courses = []Course{
		{ID: 1, Title: "Office suite essentials", Category: "digital skills", Modality: "online", Hours: 40, MunicipalityID: 1, Status: "open", Enrolled: 18, Capacity: 25},
		{ID: 2, Title: "Food handling certificate", Category: "hospitality", Modality: "in-person", Hours: 10, MunicipalityID: 2, Status: "open", Enrolled: 25, Capacity: 25},
		{ID: 3, Title: "Customer service", Category: "soft skills", Modality: "blended", Hours: 30, MunicipalityID: 1, Status: "finished", Enrolled: 12, Capacity: 20},
	}
	enrollments = []Enrollment{
		{ID: 1, CourseID: 1, UserID: 3, Status: "active", EnrolledAt: "2024-02-01T09:00:00Z"},
		{ID: 2, CourseID: 1, UserID: 4, Status: "completed", EnrolledAt: "2024-02-02T09:00:00Z"},
	}
	users = []User{
		{ID: 1, Name: "Platform Admin", Email: "admin@example.com", Role: "admin"},
		{ID: 2, Name: "Northvale Officer", Email: "officer@northvale.example.com", Role: "municipality", MunicipalityID: 1},
		{ID: 3, Name: "Alex Candidate", Email: "alex@example.com", Role: "user", MunicipalityID: 1},
		{ID: 4, Name: "Sam Candidate", Email: "sam@example.com", Role: "user", MunicipalityID: 2},
	}
	notifications = []Notification{
		{ID: 1, Title: "Your application was reviewed", Read: false, CreatedAt: "2024-01-18T08:00:00Z"},
		{ID: 2, Title: "New course available in your municipality", Read: true, CreatedAt: "2024-02-01T08:00:00Z"},
	}
)

// Default returns a registry covering the platform's endpoint families.
func Default(now func() time.Time) *Registry {
	r := NewRegistry(now)
	r.MustRegister(`/(job-offers|jobs)/\d+/applications/?$`, func(p string) interface{} {
		offerID := pathID(path.Dir(path.Clean(p)))
		var out []JobApplication
		for _, a := range jobApplications {
			if a.JobOfferID == offerID {
				out = append(out, a)
			}
		}
		return nonNil(out)
	})
	r.MustRegister(`/(job-offers|jobs)(/|$)`, listOrItem(jobOffers, func(o JobOffer) int { return o.ID }))
	r.MustRegister(`/applications(/|$)`, listOrItem(jobApplications, func(a JobApplication) int { return a.ID }))
	r.MustRegister(`/municipalities(/|$)`, listOrItem(municipalities, func(m Municipality) int { return m.ID }))
	r.MustRegister(`/courses/\d+/enrollments/?$`, func(p string) interface{} {
		courseID := pathID(path.Dir(path.Clean(p)))
		var out []Enrollment
		for _, e := range enrollments {
			if e.CourseID == courseID {
				out = append(out, e)
			}
		}
		return nonNil(out)
	})
	r.MustRegister(`/courses(/|$)`, listOrItem(courses, func(c Course) int { return c.ID }))
	r.MustRegister(`/enrollments(/|$)`, listOrItem(enrollments, func(e Enrollment) int { return e.ID }))
	r.MustRegister(`/(cv|documents)(/|$)`, func(string) interface{} {
		return DocumentStatus{UserID: 3, Status: "pending", FileName: "cv.pdf", UpdatedAt: "2024-01-10T12:00:00Z"}
	})
	r.MustRegister(`/users(/|$)`, listOrItem(users, func(u User) int { return u.ID }))
	r.MustRegister(`/(dashboard|stats)(/|$)`, func(string) interface{} {
		return Stats{
			Users:          len(users),
			JobOffers:      len(jobOffers),
			Applications:   len(jobApplications),
			Courses:        len(courses),
			Enrollments:    len(enrollments),
			Municipalities: len(municipalities),
		}
	})
	r.MustRegister(`/notifications(/|$)`, func(string) interface{} { return notifications })
	return r
}

// listOrItem serves the whole list, or the item whose id ends the path.
// An unknown id yields the first item so the shape stays stable.
func listOrItem[T any](items []T, id func(T) int) Factory {
	return func(p string) interface{} {
		want := pathID(p)
		if want == 0 {
			return items
		}
		for _, it := range items {
			if id(it) == want {
				return it
			}
		}
		return items[0]
	}
}

// pathID returns the trailing numeric segment of p, or 0.
func pathID(p string) int {
	n, err := strconv.Atoi(path.Base(p))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
