package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/utils/web/handlers"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/utils/web/server"
)

// Routes arma las rutas del servidor de estado del kernel.
func Routes(m *machine.Machine) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", handlers.HandshakeHandler("Bienvenido al módulo de Kernel"))
	mux.HandleFunc("GET /kernel", handlers.HandshakeHandler("Kernel en funcionamiento 🚀"))
	mux.HandleFunc("GET /kernel/stats", GetStatsHandler(m))
	return mux
}

// GetStatsHandler responde con la foto actual de las estadísticas de la máquina.
func GetStatsHandler(m *machine.Machine) func(http.ResponseWriter, *http.Request) {
	return func(writer http.ResponseWriter, request *http.Request) {
		snapshot := m.Stats().Snapshot()
		slog.Debug(fmt.Sprintf("Estadísticas solicitadas: %+v", snapshot))
		server.SendJsonResponse(writer, snapshot)
	}
}
