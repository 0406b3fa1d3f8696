package client

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DoRequest es una función genérica para realizar peticiones HTTP (GET, POST, PUT, DELETE, etc.) desde un cliente.
// Retorna la respuesta del servidor. En caso que se produzca un error va a retornar el error que se produjo.
//
// Parámetros:
//   - port: el puerto al que se hará la petición
//   - ip: la IP o dominio del servidor
//   - metodo: metodo HTTP
//   - query: parte final de la URL
//   - bodies ...[]byte: (opcional) body del request (usado por ejemplo en un POST/PUT), puede pasarse vacío.
//
// Ejemplo:
//
//	func main() {
//		response, err := client.DoRequest(8001, "127.0.0.1", "GET", "kernel/stats")
//		if err != nil {
//			slog.Error(fmt.Sprintf("Ocurrió un error: %v", err))
//			return
//		}
//
//		responseBody, _ := io.ReadAll(response.Body)
//		fmt.Printf("Response: %s", string(responseBody))
//	}
func DoRequest(port int, ip string, metodo string, query string, bodies ...[]byte) (*http.Response, error) {
	cliente := &http.Client{}

	url := fmt.Sprintf("http://%s:%d/%s", ip, port, query)

	req, err := http.NewRequest(metodo, url, ifBody(bodies...))
	if err != nil {
		slog.Error(fmt.Sprintf("error creando request a ip: %s puerto: %d", ip, port))
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	respuesta, err := cliente.Do(req)
	if err != nil {
		slog.Error(fmt.Sprintf("error enviando request a ip: %s puerto: %d - %v", ip, port, err))
		return nil, err
	}

	// Un status distinto de OK también es error, pero se devuelve la respuesta por si trae detalle.
	if respuesta.StatusCode != http.StatusOK {
		errorMsg := fmt.Errorf("status error: %d %s", respuesta.StatusCode, http.StatusText(respuesta.StatusCode))
		slog.Error(errorMsg.Error())
		return respuesta, errorMsg
	}

	return respuesta, nil
}

func ifBody(bodies ...[]byte) io.Reader {
	if len(bodies) == 0 || bodies[0] == nil {
		return nil
	}
	return bytes.NewBuffer(bodies[0])
}
