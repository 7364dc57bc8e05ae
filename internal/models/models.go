package models

// All lists every model managed by the schema, in dependency order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Item{},
		&Transaction{},
		&Offer{},
		&AuditLog{},
	}
}
