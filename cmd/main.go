package main

import (
	"time"

	"github.com/mnmfullmetal/savor/config"
	"github.com/mnmfullmetal/savor/routes"
	"github.com/mnmfullmetal/savor/services"
)

func main() {
	config.InitDB()
	services.InitCore(config.DB)

	stop := make(chan struct{})
	defer close(stop)

	services.Facets.StartRefresher(24*time.Hour, stop)
	services.Recipes.StartSweeper(10*time.Minute, stop)
	defer services.Scheduler.Stop()

	r := routes.SetupRouter()
	r.Run(":8080")
}
