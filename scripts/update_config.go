package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Para su uso se debe posicionar en la carpeta scripts
// > go run update_config.go scheduler priority
// > go run update_config.go machine.num_phys_pages 128 machine.timer_ticks 200
// > go run update_config.go shell_program "spawn.coff cat.coff notas.txt"

const kernelConfigDir = "../kernel/configs"

func main() {
	// Clave y valor de a pares.
	if len(os.Args) < 3 || len(os.Args)%2 != 1 {
		fmt.Println("Uso: update_config <clave_1> <valor_1> [<clave_2> <valor_2> ...]")
		fmt.Println("Ejemplo: update_config scheduler roundrobin machine.timer_ticks 200")
		return
	}

	updates := make(map[string]any)
	for i := 1; i < len(os.Args); i += 2 {
		// Números y booleanos conservan su tipo; cualquier otra cosa queda como string.
		var parsedValue any
		if err := json.Unmarshal([]byte(os.Args[i+1]), &parsedValue); err != nil {
			parsedValue = os.Args[i+1]
		}
		updates[os.Args[i]] = parsedValue
	}

	fmt.Println("Valores a actualizar:")
	for k, v := range updates {
		fmt.Printf("  %s: %v\n", k, v)
	}

	err := filepath.Walk(kernelConfigDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fmt.Printf("  Error al acceder %s: %v\n", path, err)
			return nil
		}
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		updateFile(path, updates)
		return nil
	})
	if err != nil {
		fmt.Printf("Error al buscar archivos en la carpeta %s: %v\n", kernelConfigDir, err)
	}

	fmt.Println("\nProceso de actualización de configuraciones finalizado.")
}

func updateFile(path string, updates map[string]any) {
	fileContent, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("  Error al leer el archivo %s: %v\n", path, err)
		return
	}

	var data map[string]any
	if err := json.Unmarshal(fileContent, &data); err != nil {
		fmt.Printf("  Error al parsear JSON en el archivo %s: %v\n", path, err)
		return
	}

	modified := false
	for updateKey, updateValue := range updates {
		if setKey(data, strings.Split(updateKey, "."), updateValue) {
			fmt.Printf("    Modificada '%s' en %s a '%v'\n", updateKey, path, updateValue)
			modified = true
		}
	}

	if !modified {
		fmt.Printf("  No se encontraron claves a actualizar en %s.\n", path)
		return
	}

	newJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Printf("  Error al serializar JSON en el archivo %s: %v\n", path, err)
		return
	}
	if err := os.WriteFile(path, append(newJSON, '\n'), 0644); err != nil {
		fmt.Printf("  Error al escribir el archivo %s: %v\n", path, err)
		return
	}
	fmt.Printf("  El archivo %s ha sido actualizado correctamente.\n", path)
}

// setKey recorre los objetos anidados siguiendo keys. Solo modifica claves que ya existen.
func setKey(data map[string]any, keys []string, value any) bool {
	current, ok := data[keys[0]]
	if !ok {
		return false
	}
	if len(keys) == 1 {
		data[keys[0]] = value
		return true
	}

	nested, ok := current.(map[string]any)
	if !ok {
		return false
	}
	return setKey(nested, keys[1:], value)
}
