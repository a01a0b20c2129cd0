// Package daemon exposes a registry of named store devices over a small
// json-over-http control surface on a unix socket (or tcp for tests). It is
// the demonstration plumbing around package store: create and remove
// devices, move bytes, trim, reconfigure, and poke at mappings.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/dnr/segstore/alloc"
	"github.com/dnr/segstore/store"
)

type (
	Config struct {
		SocketPath string // unix socket to listen on
		ListenAddr string // tcp address to listen on instead
	}

	Server struct {
		cfg Config

		lock    sync.Mutex
		devices map[string]*deviceEntry

		addr         string
		shutdownChan chan struct{}
		shutdownWait sync.WaitGroup
	}

	deviceEntry struct {
		dev *store.Device

		mapLock  sync.Mutex
		nextMap  int64
		mappings map[int64]*store.Mapping
	}
)

// Start listens and serves in the background. Stop shuts it down.
func Start(cfg Config) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		devices:      make(map[string]*deviceEntry),
		shutdownChan: make(chan struct{}),
	}
	if err := s.startServer(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) startServer() error {
	var l net.Listener
	var err error
	if s.cfg.ListenAddr != "" {
		l, err = net.Listen("tcp", s.cfg.ListenAddr)
	} else {
		os.Remove(s.cfg.SocketPath)
		l, err = net.ListenUnix("unix", &net.UnixAddr{Net: "unix", Name: s.cfg.SocketPath})
	}
	if err != nil {
		return err
	}
	s.addr = l.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc(CreatePath, jsonmw(s.handleCreateReq))
	mux.HandleFunc(RemovePath, jsonmw(s.handleRemoveReq))
	mux.HandleFunc(ListPath, jsonmw(s.handleListReq))
	mux.HandleFunc(ReadPath, jsonmw(s.handleReadReq))
	mux.HandleFunc(WritePath, jsonmw(s.handleWriteReq))
	mux.HandleFunc(TrimPath, jsonmw(s.handleTrimReq))
	mux.HandleFunc(ConfigurePath, jsonmw(s.handleConfigureReq))
	mux.HandleFunc(StatsPath, jsonmw(s.handleStatsReq))
	mux.HandleFunc(DebugPath, jsonmw(s.handleDebugReq))
	mux.HandleFunc(MapPath, jsonmw(s.handleMapReq))
	mux.HandleFunc(UnmapPath, jsonmw(s.handleUnmapReq))
	mux.HandleFunc(FaultPath, jsonmw(s.handleFaultReq))

	s.shutdownWait.Add(1)
	go func() {
		defer s.shutdownWait.Done()
		srv := &http.Server{Handler: mux}
		go srv.Serve(l)
		<-s.shutdownChan
		log.Printf("stopping server")
		srv.Close()
	}()
	log.Println("serving on", s.addr)
	return nil
}

// Addr returns the bound address (useful with ListenAddr ":0").
func (s *Server) Addr() string { return s.addr }

func (s *Server) Stop() {
	close(s.shutdownChan)
	s.shutdownWait.Wait()
	if s.cfg.SocketPath != "" {
		os.Remove(s.cfg.SocketPath)
	}
}

func (s *Server) get(name string) (*deviceEntry, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	ent := s.devices[name]
	if ent == nil {
		return nil, mwErr(http.StatusNotFound, "no device %q", name)
	}
	return ent, nil
}

func storeConfig(kind string, quantum, qset int64, order int, maxBlocks int64) store.Config {
	return store.Config{
		Kind:      alloc.Kind(kind),
		Quantum:   quantum,
		Qset:      qset,
		Order:     order,
		MaxBlocks: maxBlocks,
	}
}

func info(name string, d *store.Device) DeviceInfo {
	cfg := d.Config()
	return DeviceInfo{
		Name:     name,
		Kind:     string(cfg.Kind),
		Quantum:  cfg.Quantum,
		Qset:     cfg.Qset,
		Order:    cfg.Order,
		Size:     d.Size(),
		Mappings: d.Mappings(),
	}
}

func (s *Server) handleCreateReq(ctx context.Context, r *CreateReq) (*DeviceInfo, error) {
	if r.Name == "" {
		return nil, mwErr(http.StatusBadRequest, "missing device name")
	}
	dev, err := store.NewDevice(storeConfig(r.Kind, r.Quantum, r.Qset, r.Order, r.MaxBlocks))
	if err != nil {
		return nil, mwErrE(http.StatusBadRequest, err)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.devices[r.Name] != nil {
		return nil, mwErr(http.StatusConflict, "device %q exists", r.Name)
	}
	s.devices[r.Name] = &deviceEntry{dev: dev, mappings: make(map[int64]*store.Mapping)}
	i := info(r.Name, dev)
	return &i, nil
}

// handleRemoveReq tears a device down: trim, then drop it from the
// registry. A mapped device refuses the trim and stays registered.
func (s *Server) handleRemoveReq(ctx context.Context, r *RemoveReq) (*Status, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	if err := ent.dev.Trim(ctx); err != nil {
		return nil, err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.devices, r.Name)
	return nil, nil
}

func (s *Server) handleListReq(ctx context.Context, r *ListReq) (*ListResp, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	res := &ListResp{}
	for name, ent := range s.devices {
		res.Devices = append(res.Devices, info(name, ent.dev))
	}
	slices.SortFunc(res.Devices, func(a, b DeviceInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return res, nil
}

func (s *Server) handleReadReq(ctx context.Context, r *ReadReq) (*ReadResp, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	if r.Length < 0 {
		return nil, mwErr(http.StatusBadRequest, "negative length")
	}
	buf := make([]byte, r.Length)
	total := 0
	for total < len(buf) {
		n, err := ent.dev.ReadAt(ctx, buf[total:], r.Offset+int64(total))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break // end of data or hole
		}
		total += n
	}
	return &ReadResp{Data: buf[:total]}, nil
}

func (s *Server) handleWriteReq(ctx context.Context, r *WriteReq) (*WriteResp, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	total := 0
	for total < len(r.Data) {
		n, err := ent.dev.WriteAt(ctx, r.Data[total:], r.Offset+int64(total))
		if err != nil {
			return nil, err
		}
		total += n
	}
	return &WriteResp{Written: int64(total), Size: ent.dev.Size()}, nil
}

func (s *Server) handleTrimReq(ctx context.Context, r *TrimReq) (*Status, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	return nil, ent.dev.Trim(ctx)
}

func (s *Server) handleConfigureReq(ctx context.Context, r *ConfigureReq) (*DeviceInfo, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	err = ent.dev.Reconfigure(ctx, storeConfig(r.Kind, r.Quantum, r.Qset, r.Order, r.MaxBlocks))
	if err != nil {
		return nil, err
	}
	i := info(r.Name, ent.dev)
	return &i, nil
}

func (s *Server) handleStatsReq(ctx context.Context, r *StatsReq) (*StatsResp, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	return &StatsResp{Info: info(r.Name, ent.dev), Stats: ent.dev.Stats()}, nil
}

func (s *Server) handleDebugReq(ctx context.Context, r *DebugReq) (*DebugResp, error) {
	s.lock.Lock()
	names := make([]string, 0, len(s.devices))
	ents := make([]*deviceEntry, 0, len(s.devices))
	for name, ent := range s.devices {
		names = append(names, name)
		ents = append(ents, ent)
	}
	s.lock.Unlock()

	res := &DebugResp{}
	for i, ent := range ents {
		fill, err := ent.dev.SegmentFill(ctx)
		if err != nil {
			return nil, err
		}
		res.Devices = append(res.Devices, DebugDevice{
			Info:        info(names[i], ent.dev),
			SegmentFill: fill,
			Stats:       ent.dev.Stats(),
		})
	}
	return res, nil
}

func (s *Server) handleMapReq(ctx context.Context, r *MapReq) (*MapResp, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	m, err := ent.dev.OpenMapping()
	if err != nil {
		return nil, err
	}
	ent.mapLock.Lock()
	defer ent.mapLock.Unlock()
	ent.nextMap++
	ent.mappings[ent.nextMap] = m
	return &MapResp{MappingId: ent.nextMap}, nil
}

func (s *Server) handleUnmapReq(ctx context.Context, r *UnmapReq) (*Status, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	ent.mapLock.Lock()
	m := ent.mappings[r.MappingId]
	delete(ent.mappings, r.MappingId)
	ent.mapLock.Unlock()
	if m == nil {
		return nil, mwErr(http.StatusNotFound, "no mapping %d", r.MappingId)
	}
	m.Close()
	return nil, nil
}

func (s *Server) handleFaultReq(ctx context.Context, r *FaultReq) (*FaultResp, error) {
	ent, err := s.get(r.Name)
	if err != nil {
		return nil, err
	}
	ent.mapLock.Lock()
	m := ent.mappings[r.MappingId]
	ent.mapLock.Unlock()
	if m == nil {
		return nil, mwErr(http.StatusNotFound, "no mapping %d", r.MappingId)
	}
	pg, err := m.Fault(ctx, r.Offset)
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(pg.Bytes()))
	copy(data, pg.Bytes())
	return &FaultResp{Data: data, Refs: pg.Refs()}, nil
}

type errWithStatus struct {
	error
	status int
}

func mwErr(status int, format string, a ...any) error {
	return &errWithStatus{
		error:  fmt.Errorf(format, a...),
		status: status,
	}
}

func mwErrE(status int, e error) error {
	return &errWithStatus{
		error:  e,
		status: status,
	}
}

func statusForErr(err error) int {
	var ewc *errWithStatus
	switch {
	case errors.As(err, &ewc):
		return ewc.status
	case errors.Is(err, store.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, store.ErrNoMem):
		return http.StatusInsufficientStorage
	case errors.Is(err, store.ErrInterrupted):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotSupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrOutOfRange):
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}

func jsonmw[reqT, resT any](f func(context.Context, *reqT) (*resT, error)) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				log.Println("handler panic", p)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		w.Header().Set("Content-Type", "application/json")
		wEnc := json.NewEncoder(w)

		var req reqT
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			wEnc.Encode(&Status{Error: "bad request json"})
			return
		}

		res, err := f(r.Context(), &req)

		if err == nil {
			w.WriteHeader(http.StatusOK)
			if res != nil {
				wEnc.Encode(res)
			} else {
				wEnc.Encode(&Status{Success: true})
			}
			return
		}

		w.WriteHeader(statusForErr(err))
		wEnc.Encode(&Status{Success: false, Error: err.Error()})
		log.Print(r.URL.Path, " -> ", err.Error())
	}
}
