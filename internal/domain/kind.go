package domain

// Field enumerates the attributes shared by every customer kind.
type Field int

// Customer fields in their canonical order.
const (
	FieldName Field = iota
	FieldEmail
	FieldPhone
	FieldAge
	FieldIncome
	FieldCategory
	FieldBalance
)

// Kind describes one customer record kind.
//
// Both kinds share the same shape, so everything that differs between them
// (names, ranges, labels, storage names) lives here as data.
type Kind struct {
	// Path is the URL segment the kind is served under.
	Path string
	// Label is the human readable kind name used in responses.
	Label string
	// Table is the storage table holding the kind's rows.
	Table string

	NameField   string
	EmailField  string
	IncomeField string

	MinAge int32
	MaxAge int32

	// ExtendedSearch enables the income and age range lookups.
	ExtendedSearch bool
	// StatementAge includes the age in statements.
	StatementAge bool
}

// Individual is the individual customer account kind.
var Individual = Kind{
	Path:        "individuals",
	Label:       "Individual Account",
	Table:       "individual_accounts",
	NameField:   "full_name",
	EmailField:  "email",
	IncomeField: "monthly_income",
	MinAge:      18,
	MaxAge:      120,
}

// Corporate is the corporate customer account kind. Its age is the number of
// years the company has been operating.
var Corporate = Kind{
	Path:           "corporates",
	Label:          "Corporate Account",
	Table:          "corporate_accounts",
	NameField:      "trade_name",
	EmailField:     "corporate_email",
	IncomeField:    "revenue",
	MinAge:         0,
	MaxAge:         200,
	ExtendedSearch: true,
	StatementAge:   true,
}

// Kinds lists every supported kind.
var Kinds = []Kind{Individual, Corporate}

// Key returns the external attribute name of the field for the kind.
func (k Kind) Key(f Field) string {
	switch f {
	case FieldName:
		return k.NameField
	case FieldEmail:
		return k.EmailField
	case FieldPhone:
		return "phone"
	case FieldAge:
		return "age"
	case FieldIncome:
		return k.IncomeField
	case FieldCategory:
		return "category"
	case FieldBalance:
		return "balance"
	}

	return ""
}

// RequiredFields are the fields that must be present on creation.
var RequiredFields = []Field{
	FieldName,
	FieldEmail,
	FieldPhone,
	FieldAge,
	FieldIncome,
	FieldCategory,
	FieldBalance,
}

// UpdatableFields are the fields that can be changed after creation.
// The id, the balance and the timestamps are never updatable.
var UpdatableFields = []Field{
	FieldName,
	FieldEmail,
	FieldPhone,
	FieldCategory,
	FieldIncome,
	FieldAge,
}

// EmailConstraint returns the unique constraint name guarding the email column.
func (k Kind) EmailConstraint() string {
	return k.Table + "_email_key"
}

// PhoneConstraint returns the unique constraint name guarding the phone column.
func (k Kind) PhoneConstraint() string {
	return k.Table + "_phone_key"
}
