package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Defaulter lo implementan las configuraciones que completan valores faltantes después de leerse.
type Defaulter interface {
	ApplyDefaults()
}

// InitConfig lee el archivo de configuración sobre config. Si no puede leerlo entra en pánico,
// igual que el resto de los módulos al arrancar.
//
// Parámetros:
//   - filePath: ubicación del archivo de configuración
//   - config: puntero a la estructura a completar
//
// Ejemplo:
//
//	func main() {
//		var kernelConfig *models.Config
//		config.InitConfig("kernel/configs/kernel.json", &kernelConfig)
//	}
func InitConfig[T any](filePath string, config *T) {
	if err := setupConfig(filePath, config); err != nil {
		panic(fmt.Errorf("error al configurar el archivo %s: %w", filePath, err))
	}
}

// Load lee el archivo y retorna una configuración nueva, o el error.
func Load[T any](filePath string) (*T, error) {
	config := new(T)
	if err := setupConfig(filePath, config); err != nil {
		return nil, err
	}
	return config, nil
}

func setupConfig[T any](filePath string, config *T) error {
	configFile, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer configFile.Close()

	jsonParser := json.NewDecoder(configFile)
	jsonParser.DisallowUnknownFields()
	if err := jsonParser.Decode(config); err != nil {
		return fmt.Errorf("json inválido: %w", err)
	}

	applyDefaults(config)
	return nil
}

// applyDefaults completa los valores faltantes. Acepta tanto *Config como **Config.
func applyDefaults[T any](config *T) {
	if d, ok := any(config).(Defaulter); ok {
		d.ApplyDefaults()
		return
	}
	if d, ok := any(*config).(Defaulter); ok && d != nil {
		d.ApplyDefaults()
	}
}
