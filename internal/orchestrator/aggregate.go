package orchestrator

import "github.com/treykane/gostly/internal/model"

// Aggregate derives the connection summary from the profile collection.
func Aggregate(profiles []model.Profile) model.ConnectionStatus {
	active := 0
	for _, p := range profiles {
		if p.Status == model.StatusRunning {
			active++
		}
	}
	return model.ConnectionStatus{
		IsConnected:    active > 0,
		ActiveProfiles: active,
		TotalProfiles:  len(profiles),
	}
}
