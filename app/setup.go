package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/courseforge/api/api"
	"github.com/courseforge/api/config"
	"github.com/courseforge/api/database"
	"github.com/courseforge/api/router"
	"github.com/courseforge/api/services/cron"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Cron jobs default to enabled
	var cronManager *cron.CronManager
	if getEnv.CRON_ENABLED != "false" {
		db, ok := store.GetDB().(*gorm.DB)
		if !ok {
			print("Warning: Failed to get database connection for cron jobs\n")
		} else {
			cronManager = cron.NewCronManager(db)
			if err := cronManager.Start(); err != nil {
				print("Warning: Failed to start cron jobs\n")
				print("Error: ", err.Error(), "\n")
			}
		}
	}

	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes (middleware stack is attached inside)
	router.SetupRoutes(app, store, getEnv)

	return server.Run()
}
