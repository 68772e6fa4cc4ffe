package composables

type contextKey string

const (
	txKey     contextKey = "tx"
	poolKey   contextKey = "pool"
	callerKey contextKey = "caller"
	loggerKey contextKey = "logger"
)
