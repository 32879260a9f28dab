package ipc

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type TransportHandler interface {
	Play() error
	Pause() error
	SeekNext() error
	SeekPrevious() error
	SeekToMillis(int64) error
	OpenPlayer() error
	OpenPlayerChooser() error
	ResetState() error
}

type StatusHandler interface {
	Status() Status
}

type AppHandler interface {
	Quit()
}

type serverImpl struct {
	transport TransportHandler
	status    StatusHandler
	app       AppHandler
}

func NewServer(transport TransportHandler, status StatusHandler, app AppHandler) *http.Server {
	s := serverImpl{transport: transport, status: status, app: app}
	return &http.Server{
		Handler: s.createHandler(),
	}
}

func (s *serverImpl) createHandler() http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("The given path is not valid"))
	})
	m.HandleFunc(PingPath, s.makeSimpleEndpointHandler(func() error { return nil }))
	m.HandleFunc(QuitPath, s.makeSimpleEndpointHandler(func() error {
		go s.app.Quit()
		return nil
	}))
	m.HandleFunc(PlayPath, s.makeSimpleEndpointHandler(s.transport.Play))
	m.HandleFunc(PausePath, s.makeSimpleEndpointHandler(s.transport.Pause))
	m.HandleFunc(PreviousPath, s.makeSimpleEndpointHandler(s.transport.SeekPrevious))
	m.HandleFunc(NextPath, s.makeSimpleEndpointHandler(s.transport.SeekNext))
	m.HandleFunc(OpenPlayerPath, s.makeSimpleEndpointHandler(s.transport.OpenPlayer))
	m.HandleFunc(ChooserPath, s.makeSimpleEndpointHandler(s.transport.OpenPlayerChooser))
	m.HandleFunc(ResetPath, s.makeSimpleEndpointHandler(s.transport.ResetState))
	m.HandleFunc(SeekToPath, func(w http.ResponseWriter, r *http.Request) {
		ms, err := strconv.ParseInt(r.URL.Query().Get("ms"), 10, 64)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		s.writeSimpleResponse(w, s.transport.SeekToMillis(ms))
	})
	m.HandleFunc(StatusPath, func(w http.ResponseWriter, r *http.Request) {
		msg, _ := json.Marshal(s.status.Status())
		w.Write(msg)
	})
	return m
}

func (s *serverImpl) makeSimpleEndpointHandler(f func() error) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeSimpleResponse(w, f())
	}
}

func (s *serverImpl) writeSimpleResponse(w http.ResponseWriter, err error) {
	if err == nil {
		s.writeOK(w)
	} else {
		s.writeErr(w, err)
	}
}

func (s *serverImpl) writeOK(w http.ResponseWriter) (int, error) {
	var r Response
	b, err := json.Marshal(&r)
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

func (s *serverImpl) writeErr(w http.ResponseWriter, err error) (int, error) {
	r := Response{Error: err.Error()}
	b, err := json.Marshal(&r)
	if err != nil {
		return 0, err
	}
	w.WriteHeader(http.StatusInternalServerError)
	return w.Write(b)
}
