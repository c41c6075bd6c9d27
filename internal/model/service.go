package model

type ServiceCategory string

const (
	ServiceCategoryHealthCard ServiceCategory = "health_card"
	ServiceCategoryGeneral    ServiceCategory = "general"
)

// Service is a municipal health office offering. Only health_card services
// run the stage pipeline.
type Service struct {
	Base
	Name     string          `db:"name" json:"name"`
	Category ServiceCategory `db:"category" json:"category"`
	Active   bool            `db:"active" json:"active"`
}
