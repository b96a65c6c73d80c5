// Package telegram owns the live MTProto clients: at most one connected
// client per account, serialized behind a per-account lease, with all
// vendor errors translated into the uniform taxonomy before they reach
// a worker.
package telegram

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gotd/contrib/bg"
	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/contrib/middleware/ratelimit"
	tdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/tg"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/wintera/fleet/internal/config"
	"github.com/wintera/fleet/pkg/crypto"
	"github.com/wintera/fleet/pkg/logger"
)

// Session is an exclusive lease on one account's client. Workers hold
// it for the duration of a single action and must Release before any
// pacing sleep.
type Session struct {
	AccountID string
	Phone     string
	api       *tg.Client
	entry     *clientEntry
}

// API exposes the raw RPC client to the actions layer.
func (s *Session) API() *tg.Client {
	return s.api
}

type clientEntry struct {
	mu     sync.Mutex // the per-account lease
	client *tdtelegram.Client
	stop   bg.StopFunc
}

type SessionManager struct {
	cfg       config.TelegramConfig
	db        *mongo.Database
	encryptor *crypto.Encryptor
	log       logger.Logger
	zap       *zap.Logger

	mu      sync.Mutex
	entries map[string]*clientEntry
}

func NewSessionManager(cfg config.TelegramConfig, db *mongo.Database, encryptor *crypto.Encryptor, log logger.Logger) *SessionManager {
	zl, _ := zap.NewProduction()
	return &SessionManager{
		cfg:       cfg,
		db:        db,
		encryptor: encryptor,
		log:       log,
		zap:       zl,
		entries:   make(map[string]*clientEntry),
	}
}

func (m *SessionManager) entryFor(accountID string) *clientEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[accountID]
	if !ok {
		e = &clientEntry{}
		m.entries[accountID] = e
	}
	return e
}

func (m *SessionManager) newClient(accountID, proxyURL string) (*tdtelegram.Client, error) {
	storage := &sessionStorage{
		collection: m.db.Collection("telegram_sessions"),
		encryptor:  m.encryptor,
		accountID:  accountID,
	}

	opts := tdtelegram.Options{
		SessionStorage: storage,
		Logger:         m.zap.Named("mtproto").With(zap.String("account", accountID)),
		Device: tdtelegram.DeviceConfig{
			DeviceModel:    m.cfg.DeviceModel,
			SystemVersion:  m.cfg.SystemVersion,
			AppVersion:     m.cfg.AppVersion,
			SystemLangCode: m.cfg.LangCode,
			LangCode:       m.cfg.LangCode,
		},
		Middlewares: []tdtelegram.Middleware{
			floodwait.NewSimpleWaiter(),
			ratelimit.New(rate.Limit(m.cfg.RateLimit), m.cfg.RateBurst),
		},
	}

	if proxyURL != "" {
		resolver, err := proxyResolver(proxyURL)
		if err != nil {
			return nil, err
		}
		opts.Resolver = resolver
	}

	return tdtelegram.NewClient(m.cfg.APIID, m.cfg.APIHash, opts), nil
}

func proxyResolver(raw string) (dcs.Resolver, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}

	var pauth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		pauth = &proxy.Auth{User: u.User.Username(), Password: password}
	}

	dialer, err := proxy.SOCKS5("tcp", u.Host, pauth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy dialer does not support context")
	}

	return dcs.Plain(dcs.PlainOptions{Dial: contextDialer.DialContext}), nil
}

// connect spins up the client in background mode if it is not running.
// Caller must hold the entry lease.
func (m *SessionManager) connect(e *clientEntry, accountID, proxyURL string) error {
	if e.client != nil {
		return nil
	}

	client, err := m.newClient(accountID, proxyURL)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}

	stop, err := bg.Connect(client)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}

	e.client = client
	e.stop = stop
	return nil
}

// drop tears the client down after a fatal session error. Caller must
// hold the entry lease.
func (e *clientEntry) drop() {
	if e.stop != nil {
		_ = e.stop()
	}
	e.client = nil
	e.stop = nil
}

// Acquire returns the exclusive lease for an account, connecting and
// validating the stored session if needed. It blocks while another
// worker holds the lease.
func (m *SessionManager) Acquire(ctx context.Context, accountID, phone, proxyURL string) (*Session, error) {
	e := m.entryFor(accountID)
	e.mu.Lock()

	if err := m.connect(e, accountID, proxyURL); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	status, err := e.client.Auth().Status(ctx)
	if err != nil {
		e.drop()
		e.mu.Unlock()
		return nil, classify(err)
	}
	if !status.Authorized {
		e.mu.Unlock()
		return nil, &Error{Kind: KindNotAuthorized, Message: "stored session is not authorized"}
	}

	return &Session{
		AccountID: accountID,
		Phone:     phone,
		api:       e.client.API(),
		entry:     e,
	}, nil
}

// Release frees the lease. The client stays connected for reuse.
func (m *SessionManager) Release(s *Session) {
	if s == nil {
		return
	}
	s.entry.mu.Unlock()
}

// StartAuth opens (or reuses) a client for the account and requests a
// login code. Returns the phone_code_hash needed to complete.
func (m *SessionManager) StartAuth(ctx context.Context, accountID, phone, proxyURL string) (string, error) {
	e := m.entryFor(accountID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := m.connect(e, accountID, proxyURL); err != nil {
		return "", err
	}

	sent, err := e.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return "", classify(err)
	}

	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return "", &Error{Kind: KindOther, Message: fmt.Sprintf("unexpected sent code %T", sent)}
	}

	m.log.Info("Auth code sent",
		logger.Field{Key: "account_id", Value: accountID},
		logger.Field{Key: "phone", Value: logger.MaskPhone(phone)})
	return code.PhoneCodeHash, nil
}

// CompleteAuth signs in with the received code, falling back to the 2FA
// password when Telegram demands one.
func (m *SessionManager) CompleteAuth(ctx context.Context, accountID, phone, code, codeHash, password string) error {
	e := m.entryFor(accountID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return &Error{Kind: KindOther, Message: "no pending auth client for account"}
	}

	_, err := e.client.Auth().SignIn(ctx, phone, code, codeHash)
	if err != nil {
		classified := classify(err)
		if KindOf(classified) == KindPasswordNeeded && password != "" {
			if _, err := e.client.Auth().Password(ctx, password); err != nil {
				return classify(err)
			}
			return nil
		}
		return classified
	}
	return nil
}

// Me returns the authorized user behind an acquired session.
func (m *SessionManager) Me(ctx context.Context, s *Session) (*tg.User, error) {
	me, err := s.api.UsersGetFullUser(ctx, &tg.InputUserSelf{})
	if err != nil {
		return nil, classify(err)
	}
	for _, u := range me.Users {
		if user, ok := u.(*tg.User); ok && user.Self {
			return user, nil
		}
	}
	return nil, &Error{Kind: KindOther, Message: "self user missing from response"}
}

// CloseAll is a best-effort shutdown of every cached client.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	entries := make([]*clientEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		e.drop()
		e.mu.Unlock()
	}
	_ = m.zap.Sync()
}
