package model

// All returns every model managed by the store, in migration order.
func All() []any {
	return []any{
		&Provider{},
		&Plan{},
		&User{},
		&Instance{},
		&InstanceMember{},
		&AuthorisationToken{},
		&ReconciliationRun{},
	}
}
