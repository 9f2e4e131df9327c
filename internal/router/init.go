package router

import (
	"lokbazaar-backend/internal/application"
	"lokbazaar-backend/internal/container"
	pginfra "lokbazaar-backend/internal/infrastructure/postgres"
	handlers "lokbazaar-backend/internal/interface/http"
	"lokbazaar-backend/internal/router/modules"
)

type authDeps struct {
	Service *application.Service
	Auth    *handlers.AuthHandler
	Account *handlers.AccountHandler
	Profile *handlers.ProfileHandler
}

func buildAuthDeps() authDeps {
	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := application.NewService(
		repo,
		container.GetJWT(),
		container.GetGCS(),
		container.GetConfig().GCSBucket,
		container.GetLogger(),
		container.GetAudit(),
	)

	// A nil *RabbitPublisher or *redis.Client must stay a nil interface,
	// otherwise the handlers' degraded-mode guards never fire.
	var pub handlers.JobPublisher
	if rp := container.GetRabbitPub(); rp != nil {
		pub = rp
	}
	var store handlers.TokenStore
	if rdb := container.GetRedis(); rdb != nil {
		store = rdb
	}

	auth := handlers.NewAuthHandler(
		service,
		container.GetConfig(),
		pub,
		container.GetAudit(),
		container.GetLogger(),
	)
	account := handlers.NewAccountHandler(
		service,
		store,
		container.GetConfig(),
		pub,
		container.GetAudit(),
		container.GetLogger(),
	)
	profile := handlers.NewProfileHandler(service, container.GetLogger())

	return authDeps{Service: service, Auth: auth, Account: account, Profile: profile}
}

// InitModules builds every feature module from the container singletons
// and registers it. Called once during startup.
func InitModules(r *Registry) {
	deps := buildAuthDeps()
	jwt := container.GetJWT()

	r.Add(
		modules.NewAuthModule(deps.Auth, jwt),
		modules.NewAccountModule(deps.Account, jwt),
		modules.NewProfileModule(deps.Profile, jwt),
		modules.NewLanguageModule(),
	)
}
