package models

// All lists every persisted model in dependency order. Used by AutoMigrate in
// SQLite mode and by repository tests.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&DiscountConfig{},
		&GroupOrder{},
		&Order{},
		&Notification{},
		&EmailDelivery{},
		&OutboxEvent{},
	}
}
