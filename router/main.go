package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/courseforge/api/config"
	"github.com/courseforge/api/database"
	"github.com/courseforge/api/handlers"
	auth_handlers "github.com/courseforge/api/handlers/auth"
	course_handlers "github.com/courseforge/api/handlers/course"
	homework_handlers "github.com/courseforge/api/handlers/homework"
	lesson_handlers "github.com/courseforge/api/handlers/lesson"
	"github.com/courseforge/api/services"
	"github.com/courseforge/api/services/openrouter"
	"github.com/courseforge/api/utils/auth"
	"github.com/courseforge/api/utils/cache"
	"github.com/courseforge/api/utils/middleware"
)

func SetupRoutes(app *fiber.App, store database.Storage, getEnv *config.EnviornmentVariable) {
	if getEnv.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "courseforge-api"
	}

	jwtConfig := auth.JWTConfig{
		Secret:        getEnv.JWT_SECRET,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis backs brute force protection and the generation locks. When it
	// is unreachable the locks degrade to in-process mutual exclusion.
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("[Router] Warning: Failed to connect to Redis: %v. Falling back to in-memory generation locks.", err)
		redisCache = nil
	}

	var bruteForceProtection *middleware.BruteForceProtection
	var locks services.ArtifactLock
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
		locks = services.NewRedisArtifactLock(redisCache)
	} else {
		locks = services.NewMemoryArtifactLock()
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)

	// Completion gateway shared by every generating service
	gateway := openrouter.NewClient(openrouter.Config{
		APIKey:  getEnv.OPENROUTER_API_KEY,
		BaseURL: getEnv.OPENROUTER_BASE_URL,
		Model:   getEnv.OPENROUTER_MODEL,
	})

	courseService := services.NewCourseService(db, gateway)
	lessonService := services.NewLessonService(db, gateway, locks)
	homeworkService := services.NewHomeworkService(db, gateway, locks)

	courseHandler := course_handlers.NewCourseHandler(courseService)
	lessonHandler := lesson_handlers.NewLessonHandler(lessonService)
	homeworkHandler := homework_handlers.NewHomeworkHandler(homeworkService)

	allowedOrigins := getEnv.ALLOWED_ORIGINS
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Course routes (protected, owner-scoped)
	courses := api.Group("/courses", authMiddleware.Required())
	courses.Post("/", courseHandler.GenerateCourse)
	courses.Get("/", courseHandler.ListCourses)
	courses.Get("/:id", courseHandler.GetCourse)
	courses.Delete("/:id", courseHandler.DeleteCourse)

	// Lesson content (generated lazily on first read)
	api.Get("/lessons/:id", authMiddleware.Required(), lessonHandler.GetLesson)

	// Homework generation and grading
	api.Get("/modules/:id/generate_homework", authMiddleware.Required(), homeworkHandler.GenerateHomework)
	api.Post("/homeworks/:module_id/check", authMiddleware.Required(), homeworkHandler.CheckSubmission)
}
