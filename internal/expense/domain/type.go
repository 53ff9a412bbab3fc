package expense

import "fmt"

// Type is the expense category.
type Type string

const (
	TypeCleaning    Type = "cleaning"
	TypeFuel        Type = "fuel"
	TypeInsurance   Type = "insurance"
	TypeLease       Type = "lease"
	TypeMaintenance Type = "maintenance"
	TypeOther       Type = "other"
	TypeParking     Type = "parking"
	TypeRepair      Type = "repair"
	TypeRoadTax     Type = "road_tax"
	TypeTolls       Type = "tolls"
)

// Types lists every expense type in identifier order.
var Types = []Type{
	TypeCleaning,
	TypeFuel,
	TypeInsurance,
	TypeLease,
	TypeMaintenance,
	TypeOther,
	TypeParking,
	TypeRepair,
	TypeRoadTax,
	TypeTolls,
}

// ParseType validates a type identifier.
func ParseType(value string) (Type, error) {
	t := Type(value)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, value)
	}
	return t, nil
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeCleaning, TypeFuel, TypeInsurance, TypeLease, TypeMaintenance,
		TypeOther, TypeParking, TypeRepair, TypeRoadTax, TypeTolls:
		return true
	}
	return false
}

// Label is the human readable name used in reports.
func (t Type) Label() string {
	switch t {
	case TypeCleaning:
		return "Cleaning"
	case TypeFuel:
		return "Fuel"
	case TypeInsurance:
		return "Insurance"
	case TypeLease:
		return "Lease"
	case TypeMaintenance:
		return "Maintenance"
	case TypeOther:
		return "Other"
	case TypeParking:
		return "Parking"
	case TypeRepair:
		return "Repair"
	case TypeRoadTax:
		return "Road tax"
	case TypeTolls:
		return "Tolls"
	}
	return string(t)
}
