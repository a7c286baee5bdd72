package app

import (
	"context"
	"errors"
	"image"
	"sync"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/domain/port"
	"vein-detect/internal/infrastructure/storage"
)

type predictCall struct {
	base      string
	name      string
	threshold entity.Threshold
}

// fakePredictor отвечает по заранее заданным ответам для каждого адреса
type fakePredictor struct {
	mu        sync.Mutex
	responses map[string][]byte
	failures  map[string]error
	calls     []predictCall
	// before вызывается перед ответом, например чтобы отменить контекст
	before func(base string)
}

func newFakePredictor() *fakePredictor {
	return &fakePredictor{
		responses: make(map[string][]byte),
		failures:  make(map[string]error),
	}
}

func (p *fakePredictor) Predict(ctx context.Context, base string, req port.PredictRequest) (*port.PredictResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, predictCall{base: base, name: req.Candidate.Name, threshold: req.Threshold})
	if p.before != nil {
		p.before(base)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := p.failures[base]; ok {
		return nil, err
	}
	if data, ok := p.responses[base]; ok {
		return &port.PredictResponse{Data: data, MIMEType: "image/jpeg"}, nil
	}
	return nil, errors.New("connection refused")
}

func (p *fakePredictor) callsTo(base string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.base == base {
			n++
		}
	}
	return n
}

type fakeDevice struct {
	frame  image.Image
	closed bool
}

func (d *fakeDevice) ReadFrame() (image.Image, error) {
	return d.frame, nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

type fakeOpener struct {
	err    error
	frame  image.Image
	opened []*fakeDevice
}

func (o *fakeOpener) Open(ctx context.Context) (port.CameraDevice, error) {
	if o.err != nil {
		return nil, o.err
	}
	d := &fakeDevice{frame: o.frame}
	o.opened = append(o.opened, d)
	return d, nil
}

const (
	primaryBase  = "http://proxy.local/api"
	fallbackBase = "http://localhost:8000"
)

type fixture struct {
	kv        *storage.MemoryKVStore
	blobs     *storage.MemoryBlobStore
	artifacts *ArtifactManager
	cache     *SessionCache
	predictor *fakePredictor
	detection *DetectionService
	opener    *fakeOpener
	camera    *CameraService
	workspace *Workspace
}

func newFixture() *fixture {
	f := &fixture{
		kv:        storage.NewMemoryKVStore(),
		blobs:     storage.NewMemoryBlobStore(),
		predictor: newFakePredictor(),
		opener:    &fakeOpener{},
	}
	f.artifacts = NewArtifactManager(f.blobs, nil)
	f.cache = NewSessionCache(f.kv, f.artifacts, nil)
	f.detection = NewDetectionService(f.predictor, []string{primaryBase, fallbackBase}, f.artifacts, f.cache, nil)
	f.camera = NewCameraService(f.opener)
	f.workspace = NewWorkspace(f.detection, f.camera, f.cache, f.artifacts)
	return f
}
