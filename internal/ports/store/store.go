package store

import "context"

// KV es el puerto hacia la persistencia clave-valor. Los valores son blobs
// JSON; cada agregado se lee y escribe completo bajo una sola clave.
type KV interface {
	// Get devuelve (valor, true, nil) si la clave existe.
	// Si no existe: ("", false, nil). Error solo ante fallo de I/O.
	Get(ctx context.Context, key string) (string, bool, error)

	Set(ctx context.Context, key, value string) error

	Remove(ctx context.Context, key string) error
}

// Claves de agregados persistidos.
const (
	KeyMedicines = "medicines"
	KeyHistory   = "medicineHistory"
)
