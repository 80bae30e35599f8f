package bus

import "sync"

// Kind clasifica las señales entre módulos. Sustituye a las claves de
// storage que la app original sondeaba cada segundo (lastDeletedMedicine,
// lastUpdatedMedicine, pendingNotification).
type Kind string

const (
	MedicineCreated Kind = "medicine_created"
	MedicineUpdated Kind = "medicine_updated"
	MedicineDeleted Kind = "medicine_deleted"
	HistoryReset    Kind = "history_reset"
)

type Event struct {
	Kind       Kind
	MedicineID string
}

// Bus es un pub/sub en proceso. Publish nunca bloquea: si un suscriptor
// tiene el buffer lleno pierde el evento y se resincroniza en su próximo
// ciclo.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe devuelve el canal de eventos y la función para darse de baja.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
