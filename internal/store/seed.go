package store

import (
	"time"

	"garage-client/internal/model"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "garage"

// SeedDemo registers one account per role. Accounts without any restored
// notification get a welcome one. Existing accounts are left alone.
func (s *Store) SeedDemo(now time.Time) {
	users := []model.UserProfile{
		{Email: "admin@garage.test", Name: "Ada Admin", Role: model.RoleAdmin, EmailConfirmed: true},
		{Email: "mechanic@garage.test", Name: "Milo Mechanic", Role: model.RoleMechanic, EmailConfirmed: true},
		{Email: "client@garage.test", Name: "Cleo Client", Role: model.RoleClient, Phone: "+34 600 000 000"},
	}
	for _, u := range users {
		created, err := s.AddUser(u, DemoPassword)
		if err != nil || len(s.ListNotifications(created.ID, false)) > 0 {
			continue
		}
		s.AddNotification(created.ID, model.Notification{
			Title:   "Welcome",
			Message: "Your garage account is ready",
			Type:    "ACCOUNT_CREATED",
		}, now)
	}
}
