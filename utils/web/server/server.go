package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const shutdownTimeout = 2 * time.Second

// InitServer levanta el servidor en port con las rutas de handler y lo apaga cuando se
// cancela ctx. Retorna nil si el apagado fue por ctx.
//
// Parámetros:
//   - ctx: al cancelarse se apaga el servidor
//   - port: puerto donde se iniciará el servidor
//   - handler: rutas a atender
//
// Ejemplo:
//
//	func main() {
//		err := server.InitServer(ctx, models.KernelConfig.PortKernel, handlers.Routes(m))
//		if err != nil {
//			slog.Error(fmt.Sprintf("error initializing server: %v", err))
//		}
//	}
func InitServer(ctx context.Context, port int, handler http.Handler) error {
	addr := ":" + strconv.Itoa(port)
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn(fmt.Sprintf("No se pudo apagar el servidor en %s: %v", addr, err))
		}
	}()

	slog.Debug(fmt.Sprintf("Servidor escuchando en %s", addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		slog.Error(fmt.Sprintf("Error al escuchar en el puerto %s: %v", addr, err))
	}
	return err
}

// SendJsonResponse retorna la respues del servidor en formato JSON
//
// Parámetros:
//   - writer: el http.ResponseWriter con el que se escribe la respuesta HTTP
//   - data: cualquier estructura de datos que querés enviar al cliente, se convierte automáticamente a JSON.
//
// Ejemplo:
//
//	func HandshakeHandler(message string) func(http.ResponseWriter, *http.Request) {
//		return func(writer http.ResponseWriter, request *http.Request) {
//			server.SendJsonResponse(writer, message)
//		}
//	}
func SendJsonResponse(writer http.ResponseWriter, data any) {
	response, err := json.Marshal(data)
	if err != nil {
		http.Error(writer, "Error al convertir datos a JSON", http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusOK)
	writer.Write(response)
}
