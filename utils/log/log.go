package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// InitLogger permite loguear tanto en consola como en archivo según el nivel que se le pase.
//
// Parámetros:
//   - logPath: la ubicación donde se va encontrar el archivo; si está vacío solo se loguea por consola
//   - logLevel: nivel de logueo, este dato viene definido en el archivo de config.
//
// Ejemplo:
//
//	func main() {
//		log.InitLogger("./logs/kernel.log", "INFO")
//	}
func InitLogger(logPath string, logLevel string) {
	var out io.Writer = os.Stdout

	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			panic(err)
		}
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
		if err != nil {
			panic(err)
		}
		// Consola y archivo a la vez.
		out = io.MultiWriter(os.Stdout, logFile)
	}

	slog.SetDefault(NewLogger(out, logLevel))
	slog.Debug("Se ha configurado correctamente el logger y el archivo de configuración.")
}

// NewLogger arma un logger de texto sobre out. Si el nivel no existe usa INFO y lo advierte.
func NewLogger(out io.Writer, logLevel string) *slog.Logger {
	level, err := convertStringToLogLevel(logLevel)

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))

	if err != nil {
		logger.Warn(err.Error())
	}
	return logger
}

// convertStringToLogLevel modifica dinámicamente el nivel de log que deseamos tener en el sistema.
func convertStringToLogLevel(levelStr string) (slog.Level, error) {
	switch levelStr {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("No existe %s, se coloca INFO por defecto. ", levelStr)
	}
}
