// Package swarm owns the process-wide peer-swarm client and the lifecycle of
// its torrent sessions: capped residency with LRU eviction, bounded metadata
// waits, playback-start piece priorities, and idle teardown.
package swarm

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"

	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/internal/errors"
	"github.com/amaumene/gostreamer/pkg/logger"
)

var infoHashPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Config controls session residency and metadata-wait behavior.
type Config struct {
	DataDir         string
	MaxActive       int
	IdleTimeout     time.Duration
	MetadataTimeout time.Duration
	MetadataRetries int
}

// DefaultConfig returns the standard session limits.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:         dataDir,
		MaxActive:       constants.MaxActiveSessions,
		IdleTimeout:     constants.SwarmIdleTimeout,
		MetadataTimeout: constants.SwarmMetadataTimeout,
		MetadataRetries: constants.SwarmMetadataRetries,
	}
}

// FileHandle is a playable file inside an acquired session.
type FileHandle struct {
	InfoHash string
	Index    int
	Name     string
	Length   int64

	file *torrent.File
}

// NewReader returns a sequential reader positioned at the start of the file.
// The caller owns closing it.
func (h *FileHandle) NewReader() torrent.Reader {
	return h.file.NewReader()
}

// session is one resident torrent plus its access bookkeeping.
type session struct {
	infoHash   string
	lastAccess time.Time
	idleTimer  *time.Timer
	drop       func()
}

// Manager is the injected owner of the single swarm client. All session
// mutations go through its lock; per-hash adds are additionally serialized
// so concurrent requests for the same hash share one session.
type Manager struct {
	cfg    Config
	client *torrent.Client
	logger logger.Logger

	mu        sync.Mutex
	sessions  map[string]*session
	hashLocks map[string]*sync.Mutex
	closed    bool

	// Injection points for the client interactions that need a live swarm.
	addFn  func(hash string) (*torrent.Torrent, func(), error)
	waitFn func(ctx context.Context, t *torrent.Torrent) error
}

// NewManager starts the swarm client with scratch storage under
// cfg.DataDir. The directory is volatile: removed again on Close.
func NewManager(cfg Config) (*Manager, error) {
	scratchDir := filepath.Join(cfg.DataDir, "swarm-scratch")
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create swarm scratch dir: %w", err)
	}

	clientCfg := torrent.NewDefaultClientConfig()
	clientCfg.DataDir = scratchDir
	clientCfg.Seed = false

	client, err := torrent.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start swarm client: %w", err)
	}

	m := &Manager{
		cfg:       cfg,
		client:    client,
		logger:    logger.New(),
		sessions:  make(map[string]*session),
		hashLocks: make(map[string]*sync.Mutex),
	}
	m.addFn = m.addMagnet
	m.waitFn = func(ctx context.Context, t *torrent.Torrent) error {
		return waitForInfo(ctx, t, m.cfg.MetadataTimeout)
	}
	return m, nil
}

func (m *Manager) addMagnet(hash string) (*torrent.Torrent, func(), error) {
	t, err := m.client.AddMagnet(BuildMagnet(hash))
	if err != nil {
		return nil, nil, err
	}
	return t, t.Drop, nil
}

// AcquireFile resolves an infoHash to a playable file handle, creating the
// session if needed. fileIndex < 0 selects the largest file.
func (m *Manager) AcquireFile(ctx context.Context, infoHash string, fileIndex int) (*FileHandle, error) {
	hash, err := NormalizeInfoHash(infoHash)
	if err != nil {
		return nil, err
	}

	// Serialize add/evict/destroy per hash so two callers racing on the
	// same hash end up sharing a single session.
	hashLock := m.lockForHash(hash)
	hashLock.Lock()
	defer hashLock.Unlock()

	t, err := m.getOrAddTorrent(ctx, hash)
	if err != nil {
		return nil, err
	}

	m.touch(hash)

	file, index := selectFile(t, fileIndex)
	if file == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("torrent %s has no files", hash))
	}
	prioritizePlaybackStart(t, file)

	return &FileHandle{
		InfoHash: hash,
		Index:    index,
		Name:     filepath.Base(file.Path()),
		Length:   file.Length(),
		file:     file,
	}, nil
}

// Destroy tears down the session for a hash. Safe on unknown or
// already-destroyed hashes; teardown failures never propagate.
func (m *Manager) Destroy(infoHash string) {
	hash, err := NormalizeInfoHash(infoHash)
	if err != nil {
		return
	}

	m.mu.Lock()
	s, ok := m.sessions[hash]
	if ok {
		delete(m.sessions, hash)
	}
	m.mu.Unlock()

	if ok {
		m.dropSession(s)
	}
}

// DestroyAll tears down every resident session.
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	dropped := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		dropped = append(dropped, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range dropped {
		m.dropSession(s)
	}
}

// Close destroys all sessions, stops the client, and removes the scratch
// directory.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.DestroyAll()
	m.client.Close()

	scratchDir := filepath.Join(m.cfg.DataDir, "swarm-scratch")
	if err := os.RemoveAll(scratchDir); err != nil {
		m.logger.Warnf("[Swarm] failed to remove scratch dir: %v", err)
	}
}

// SessionCount returns the number of resident sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) getOrAddTorrent(ctx context.Context, hash string) (*torrent.Torrent, error) {
	m.mu.Lock()
	_, exists := m.sessions[hash]
	m.mu.Unlock()

	if !exists {
		m.evictForCapacity()
	}

	var lastErr error
	attempts := m.cfg.MetadataRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		t, drop, err := m.addFn(hash)
		if err != nil {
			return nil, errors.NewSwarmUnavailableError(hash, err)
		}

		if !exists {
			m.registerSession(hash, drop)
			exists = true
		}

		lastErr = m.waitFn(ctx, t)
		if lastErr == nil {
			return t, nil
		}
		if ctx.Err() != nil {
			m.Destroy(hash)
			return nil, ctx.Err()
		}

		// Metadata never arrived: destroy and re-add for a fresh start.
		m.logger.Warnf("[Swarm] metadata timeout for %s (attempt %d/%d)", hash, attempt+1, attempts)
		m.Destroy(hash)
		exists = false
	}

	return nil, errors.NewSwarmUnavailableError(hash, lastErr)
}

func (m *Manager) registerSession(hash string, drop func()) {
	s := &session{
		infoHash:   hash,
		lastAccess: time.Now(),
		drop:       drop,
	}
	s.idleTimer = time.AfterFunc(m.cfg.IdleTimeout, func() {
		m.expireIfIdle(hash)
	})

	m.mu.Lock()
	m.sessions[hash] = s
	m.mu.Unlock()
}

// touch resets the access time and idle timer of a resident session.
func (m *Manager) touch(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[hash]; ok {
		s.lastAccess = time.Now()
		s.idleTimer.Reset(m.cfg.IdleTimeout)
	}
}

// expireIfIdle destroys the session if it really went unused; a timer
// firing concurrently with an access loses.
func (m *Manager) expireIfIdle(hash string) {
	m.mu.Lock()
	s, ok := m.sessions[hash]
	if !ok || time.Since(s.lastAccess) < m.cfg.IdleTimeout {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, hash)
	m.mu.Unlock()

	m.logger.Infof("[Swarm] destroying idle session %s", hash)
	m.dropSession(s)
}

// evictForCapacity drops least-recently-accessed sessions until there is
// room for one more resident session.
func (m *Manager) evictForCapacity() {
	for {
		m.mu.Lock()
		if len(m.sessions) < m.cfg.MaxActive {
			m.mu.Unlock()
			return
		}
		hash := oldestSessionHash(m.sessions)
		s := m.sessions[hash]
		delete(m.sessions, hash)
		m.mu.Unlock()

		m.logger.Infof("[Swarm] evicting LRU session %s", hash)
		m.dropSession(s)
	}
}

// dropSession tears a session down. Cleanup must never crash the request
// path, so panics from the underlying client are logged and swallowed.
func (m *Manager) dropSession(s *session) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warnf("[Swarm] session teardown panic for %s: %v", s.infoHash, r)
		}
	}()

	s.idleTimer.Stop()
	s.drop()
}

func (m *Manager) lockForHash(hash string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.hashLocks[hash]
	if !ok {
		lock = &sync.Mutex{}
		m.hashLocks[hash] = lock
	}
	return lock
}

func waitForInfo(ctx context.Context, t *torrent.Torrent, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-t.GotInfo():
		return nil
	case <-timer.C:
		return errors.NewTimeoutError("torrent metadata wait")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// selectFile honors an explicit valid index, otherwise picks the largest
// file (assumed main track). All other files are deselected.
func selectFile(t *torrent.Torrent, fileIndex int) (*torrent.File, int) {
	files := t.Files()
	if len(files) == 0 {
		return nil, -1
	}

	index := fileIndex
	if index < 0 || index >= len(files) {
		lengths := make([]int64, len(files))
		for i, f := range files {
			lengths[i] = f.Length()
		}
		index = LargestFileIndex(lengths)
	}

	for i, f := range files {
		if i == index {
			f.SetPriority(torrent.PiecePriorityNormal)
		} else {
			f.SetPriority(torrent.PiecePriorityNone)
		}
	}

	return files[index], index
}

// prioritizePlaybackStart marks the pieces covering the head of the file as
// high priority so playback can begin before the download completes.
func prioritizePlaybackStart(t *torrent.Torrent, f *torrent.File) {
	info := t.Info()
	if info == nil || info.PieceLength <= 0 {
		return
	}

	begin, end := PriorityPieceRange(f.Offset(), f.Length(), constants.PlaybackPriorityBytes, info.PieceLength)
	for p := begin; p <= end && p < t.NumPieces(); p++ {
		t.Piece(p).SetPriority(torrent.PiecePriorityHigh)
	}
}

// LargestFileIndex returns the index of the largest length.
func LargestFileIndex(lengths []int64) int {
	best := 0
	for i, l := range lengths {
		if l > lengths[best] {
			best = i
		}
	}
	return best
}

// PriorityPieceRange computes the inclusive piece range covering the first
// prebuffer bytes of a file at the given offset within the torrent.
func PriorityPieceRange(fileOffset, fileLength, prebuffer, pieceLength int64) (begin, end int) {
	if fileLength <= 0 || pieceLength <= 0 {
		return 0, -1
	}

	lastByte := prebuffer - 1
	if lastByte > fileLength-1 {
		lastByte = fileLength - 1
	}

	begin = int(fileOffset / pieceLength)
	end = int((fileOffset + lastByte) / pieceLength)
	return begin, end
}

// oldestSessionHash returns the hash of the least-recently-accessed session.
func oldestSessionHash(sessions map[string]*session) string {
	var oldest string
	var oldestAt time.Time
	for hash, s := range sessions {
		if oldest == "" || s.lastAccess.Before(oldestAt) {
			oldest, oldestAt = hash, s.lastAccess
		}
	}
	return oldest
}

// NormalizeInfoHash lowercases and validates a 40-hex info hash.
func NormalizeInfoHash(infoHash string) (string, error) {
	hash := strings.ToLower(strings.TrimSpace(infoHash))
	if !infoHashPattern.MatchString(hash) {
		return "", errors.NewInvalidIDError(infoHash)
	}
	return hash, nil
}

// BuildMagnet constructs a magnet URI for a hash with the fixed tracker list.
func BuildMagnet(infoHash string) string {
	var b strings.Builder
	b.WriteString("magnet:?xt=urn:btih:")
	b.WriteString(infoHash)
	for _, tracker := range constants.TrackerList {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(tracker))
	}
	return b.String()
}
