package testutil

const (
	APIBaseURL          = "/api/v1"
	HealthCheckEndpoint = APIBaseURL + "/health"
	MetricsEndpoint     = "/metrics"
	LoginEndpoint       = APIBaseURL + "/auth/login"
	RegisterEndpoint    = APIBaseURL + "/auth/register"
	RefreshEndpoint     = APIBaseURL + "/auth/refresh"
	LogoutEndpoint      = APIBaseURL + "/auth/logout"
	SessionsEndpoint    = APIBaseURL + "/auth/sessions"
	ProfileEndpoint     = APIBaseURL + "/users/me"
)
