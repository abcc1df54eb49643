package serve

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"facerec/event"
)

const (
	// Time allowed to write a message to the client.
	writeWait  = 10 * time.Second
	pingPeriod = 10 * time.Second

	// Records queued per client before it is considered too slow.
	clientBuffer = 16
)

// EventStream broadcasts presence records to websocket clients. It
// implements event.Publisher so it can be added to an event.Multi.
type EventStream struct {
	upgrader websocket.Upgrader
	cs       map[chan []byte]bool
	addc     chan chan []byte
	delc     chan chan []byte
	notify   chan []byte
	countc   chan chan int
}

func NewEventStream() *EventStream {
	m := &EventStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		cs:     make(map[chan []byte]bool),
		addc:   make(chan chan []byte),
		delc:   make(chan chan []byte),
		notify: make(chan []byte),
		countc: make(chan chan int),
	}
	go func() {
		for {
			select {
			case c := <-m.addc:
				m.cs[c] = true
			case c := <-m.delc:
				delete(m.cs, c)
			case r := <-m.countc:
				r <- len(m.cs)
			case b := <-m.notify:
				for k := range m.cs {
					select {
					case k <- b:
					default:
						// Slow client, drop the record.
					}
				}
			}
		}
	}()
	return m
}

// Clients returns the number of connected clients.
func (m *EventStream) Clients() int {
	r := make(chan int)
	m.countc <- r
	return <-r
}

type loginMessage struct {
	Login struct {
		User       int     `json:"user"`
		Confidence *string `json:"confidence"`
	} `json:"login"`
}

type logoutMessage struct {
	Logout struct {
		User int `json:"user"`
	} `json:"logout"`
}

func (m *EventStream) Login(user int, confidence *float64) error {
	var msg loginMessage
	msg.Login.User = user
	if confidence != nil {
		c := event.FormatConfidence(*confidence)
		msg.Login.Confidence = &c
	}
	return m.broadcast(msg)
}

func (m *EventStream) Logout(user int) error {
	var msg logoutMessage
	msg.Logout.User = user
	return m.broadcast(msg)
}

func (m *EventStream) broadcast(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.notify <- b
	return nil
}

func (m *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if _, ok := err.(websocket.HandshakeError); !ok {
			log.WithField("addr", r.RemoteAddr).Errorf("Websocket handshake failed for event stream: %v", err)
		}
		return
	}
	go m.serve(ws)
}

func (m *EventStream) serve(ws *websocket.Conn) {
	clog := log.WithField("addr", ws.RemoteAddr())
	clog.Debug("Connected to event stream")
	defer func() {
		ws.Close()
		clog.Debug("Disconnected from event stream")
	}()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	recordc := make(chan []byte, clientBuffer)
	m.addc <- recordc
	defer func() { m.delc <- recordc }()

	// Incoming messages are ignored but control frames need a reader.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case b := <-recordc:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-pingTicker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}
