package certification

import "time"

const (
	// ValidityPeriod is how long a passed module stays valid.
	ValidityPeriod = 365 * 24 * time.Hour
	// PassingScore is the minimum score that completes a module.
	PassingScore = 80
)

// Module is a required training module.
type Module struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

var requiredModules = []Module{
	{ID: "safety-basics", Title: "Safety Basics"},
	{ID: "equipment-operation", Title: "Equipment Operation"},
	{ID: "sanitation-chemicals", Title: "Sanitation Chemicals"},
	{ID: "customer-service", Title: "Customer Service"},
	{ID: "photo-documentation", Title: "Photo Documentation"},
}

// RequiredModules returns the modules every employee must hold, in display order.
func RequiredModules() []Module {
	return append([]Module(nil), requiredModules...)
}

// LookupModule returns the required module with the given ID.
func LookupModule(id string) (Module, bool) {
	for _, m := range requiredModules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}
