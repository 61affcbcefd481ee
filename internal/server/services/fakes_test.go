package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/cryptox"
	"github.com/dmitrijs2005/boardforge/internal/dbx"
	"github.com/dmitrijs2005/boardforge/internal/server/auth"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/attachments"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/cards"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/labels"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/teams"
	"github.com/dmitrijs2005/boardforge/internal/server/repositories/users"
	"github.com/dmitrijs2005/boardforge/internal/timex"
)

var testNow = time.Date(2025, 9, 14, 12, 0, 0, 0, time.UTC)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// --- users ---

type memUsers struct {
	mu        sync.Mutex
	rows      map[int64]*models.User
	nextID    int64
	createErr error
}

func newMemUsers() *memUsers { return &memUsers{rows: map[int64]*models.User{}} }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.rows {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	r.nextID++
	u.ID = r.nextID
	cp := *u
	r.rows[u.ID] = &cp
	return u, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// --- refresh tokens ---

type memTokens struct {
	mu        sync.Mutex
	rows      []*models.RefreshToken
	nextID    int64
	createErr error
}

func (r *memTokens) Create(_ context.Context, t *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	t.ID = r.nextID
	cp := *t
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memTokens) FindByHash(_ context.Context, hash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.rows {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memTokens) Revoke(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id && row.RevokedAt == nil {
			row.RevokedAt = &at
			return nil
		}
	}
	return refreshtokens.ErrAlreadyRevoked
}

func (r *memTokens) snapshot() []models.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RefreshToken, 0, len(r.rows))
	for _, t := range r.rows {
		out = append(out, *t)
	}
	return out
}

// --- teams ---

type memTeams struct {
	mu           sync.Mutex
	nextID       int64
	teams        map[int64]*models.Team
	roles        map[[2]int64]models.TeamRole
	getRoleCalls int
	addErr       error
}

func newMemTeams() *memTeams {
	return &memTeams{teams: map[int64]*models.Team{}, roles: map[[2]int64]models.TeamRole{}}
}

func (r *memTeams) Create(_ context.Context, team *models.Team) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	team.ID = r.nextID
	team.IsActive = true
	cp := *team
	r.teams[team.ID] = &cp
	return team, nil
}

func (r *memTeams) AddMember(_ context.Context, m *models.TeamMembership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	key := [2]int64{m.TeamID, m.UserID}
	if _, ok := r.roles[key]; ok {
		return common.ErrorAlreadyExists
	}
	r.roles[key] = m.Role
	return nil
}

func (r *memTeams) GetRole(_ context.Context, teamID, userID int64) (models.TeamRole, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getRoleCalls++
	if t, ok := r.teams[teamID]; ok && !t.IsActive {
		return "", common.ErrorNotFound
	}
	role, ok := r.roles[[2]int64{teamID, userID}]
	if !ok {
		return "", common.ErrorNotFound
	}
	return role, nil
}

func (r *memTeams) memberCount(teamID int64) int {
	n := 0
	for k := range r.roles {
		if k[0] == teamID {
			n++
		}
	}
	return n
}

func (r *memTeams) Get(_ context.Context, id int64) (*models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok || !t.IsActive {
		return nil, common.ErrorNotFound
	}
	cp := *t
	cp.MemberCount = r.memberCount(id)
	return &cp, nil
}

func (r *memTeams) ListByUser(_ context.Context, userID int64) ([]models.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Team{}
	for k := range r.roles {
		if t, ok := r.teams[k[0]]; ok && k[1] == userID && t.IsActive {
			cp := *t
			cp.MemberCount = r.memberCount(t.ID)
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memTeams) Update(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[team.ID]
	if !ok || !t.IsActive {
		return common.ErrorNotFound
	}
	t.Name, t.Description, t.UpdatedBy, t.UpdatedAt = team.Name, team.Description, team.UpdatedBy, team.UpdatedAt
	return nil
}

func (r *memTeams) SoftDelete(_ context.Context, id, _ int64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok || !t.IsActive {
		return common.ErrorNotFound
	}
	t.IsActive = false
	return nil
}

func (r *memTeams) ListMembers(_ context.Context, teamID int64) ([]models.TeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.TeamMember{}
	for k, role := range r.roles {
		if k[0] == teamID {
			out = append(out, models.TeamMember{TeamID: teamID, UserID: k[1], Role: role})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r *memTeams) UpdateRole(_ context.Context, teamID, userID int64, role models.TeamRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{teamID, userID}
	if _, ok := r.roles[key]; !ok {
		return common.ErrorNotFound
	}
	r.roles[key] = role
	return nil
}

func (r *memTeams) RemoveMember(_ context.Context, teamID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{teamID, userID}
	if _, ok := r.roles[key]; !ok {
		return common.ErrorNotFound
	}
	delete(r.roles, key)
	return nil
}

func (r *memTeams) setRole(teamID, userID int64, role models.TeamRole) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[[2]int64{teamID, userID}] = role
}

// --- cards ---

func rv(v int64) []byte { return binary.BigEndian.AppendUint64(nil, uint64(v)) }

type memCards struct {
	mu       sync.Mutex
	nextID   int64
	rows     map[int64]*models.Card
	versions map[int64]int64
}

func newMemCards() *memCards {
	return &memCards{rows: map[int64]*models.Card{}, versions: map[int64]int64{}}
}

func (r *memCards) Create(_ context.Context, c *models.Card) (*models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	c.IsActive = true
	r.versions[c.ID] = 1
	c.RowVersion = rv(1)
	cp := *c
	r.rows[c.ID] = &cp
	return c, nil
}

func (r *memCards) Get(_ context.Context, id int64) (*models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || !c.IsActive {
		return nil, common.ErrorNotFound
	}
	cp := *c
	cp.RowVersion = rv(r.versions[id])
	return &cp, nil
}

func (r *memCards) UpdateVersioned(ctx context.Context, token models.ConcurrencyToken, mutate func(*models.Card)) (*models.Card, error) {
	c, err := r.Get(ctx, token.ID)
	if err != nil {
		return nil, err
	}
	mutate(c)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !bytes.Equal(rv(r.versions[token.ID]), token.RowVersion) {
		return nil, common.ErrVersionConflict
	}
	r.versions[token.ID]++
	c.RowVersion = rv(r.versions[token.ID])
	cp := *c
	r.rows[token.ID] = &cp
	return c, nil
}

func (r *memCards) ListByTeam(_ context.Context, teamID int64) ([]models.Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Card{}
	for id, c := range r.rows {
		if c.TeamID == teamID && c.IsActive {
			cp := *c
			cp.RowVersion = rv(r.versions[id])
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memCards) SoftDelete(_ context.Context, id, _ int64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || !c.IsActive {
		return common.ErrorNotFound
	}
	c.IsActive = false
	r.versions[id]++
	return nil
}

// --- labels ---

type memLabels struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Label
	links  map[[2]int64]bool
	cards  *memCards
}

func newMemLabels(cards *memCards) *memLabels {
	return &memLabels{rows: map[int64]*models.Label{}, links: map[[2]int64]bool{}, cards: cards}
}

func (r *memLabels) Create(_ context.Context, l *models.Label) (*models.Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.rows {
		if x.TeamID == l.TeamID && x.IsActive && x.NormalizedName == l.NormalizedName {
			return nil, common.ErrorAlreadyExists
		}
	}
	r.nextID++
	l.ID = r.nextID
	l.IsActive = true
	cp := *l
	r.rows[l.ID] = &cp
	return l, nil
}

func (r *memLabels) Get(_ context.Context, teamID, id int64) (*models.Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok || !l.IsActive || l.TeamID != teamID {
		return nil, common.ErrorNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memLabels) ListByTeam(_ context.Context, teamID int64) ([]models.Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Label{}
	for _, l := range r.rows {
		if l.TeamID == teamID && l.IsActive {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memLabels) Update(_ context.Context, l *models.Label) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[l.ID]
	if !ok || !cur.IsActive || cur.TeamID != l.TeamID {
		return common.ErrorNotFound
	}
	for _, x := range r.rows {
		if x.ID != l.ID && x.TeamID == l.TeamID && x.IsActive && x.NormalizedName == l.NormalizedName {
			return common.ErrorAlreadyExists
		}
	}
	cp := *l
	r.rows[l.ID] = &cp
	return nil
}

func (r *memLabels) InUse(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.links {
		if k[1] == id {
			return true, nil
		}
	}
	return false, nil
}

func (r *memLabels) SoftDelete(_ context.Context, id, _ int64, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok || !l.IsActive {
		return common.ErrorNotFound
	}
	l.IsActive = false
	return nil
}

func (r *memLabels) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memLabels) ListForCard(_ context.Context, cardID int64) ([]models.Label, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Label{}
	for k := range r.links {
		if l := r.rows[k[1]]; k[0] == cardID && l != nil && l.IsActive {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memLabels) ListForTeamCards(ctx context.Context, teamID int64) ([]models.CardLabelLink, error) {
	cards, _ := r.cards.ListByTeam(ctx, teamID)
	out := []models.CardLabelLink{}
	for _, c := range cards {
		labels, _ := r.ListForCard(ctx, c.ID)
		for _, l := range labels {
			out = append(out, models.CardLabelLink{CardID: c.ID, Label: l})
		}
	}
	return out, nil
}

func (r *memLabels) Attach(_ context.Context, cardID, labelID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[[2]int64{cardID, labelID}] = true
	return nil
}

func (r *memLabels) Detach(_ context.Context, cardID, labelID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{cardID, labelID}
	if !r.links[key] {
		return common.ErrorNotFound
	}
	delete(r.links, key)
	return nil
}

// --- attachments ---

type memAttachments struct {
	mu   sync.Mutex
	rows map[string]*models.CardAttachment
}

func newMemAttachments() *memAttachments {
	return &memAttachments{rows: map[string]*models.CardAttachment{}}
}

func (r *memAttachments) Create(_ context.Context, a *models.CardAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *memAttachments) Get(_ context.Context, cardID int64, id string) (*models.CardAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok || a.CardID != cardID {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

// --- manager ---

type fakeRepoManager struct {
	users       *memUsers
	tokens      *memTokens
	teams       *memTeams
	cards       *memCards
	labels      *memLabels
	attachments *memAttachments
}

func newFakeRepoManager() *fakeRepoManager {
	cardRepo := newMemCards()
	return &fakeRepoManager{
		users:       newMemUsers(),
		tokens:      &memTokens{},
		teams:       newMemTeams(),
		cards:       cardRepo,
		labels:      newMemLabels(cardRepo),
		attachments: newMemAttachments(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.tokens }
func (m *fakeRepoManager) Teams(dbx.DBTX) teams.Repository                 { return m.teams }
func (m *fakeRepoManager) Cards(dbx.DBTX) cards.Repository                 { return m.cards }
func (m *fakeRepoManager) Labels(dbx.DBTX) labels.Repository               { return m.labels }
func (m *fakeRepoManager) Attachments(dbx.DBTX) attachments.Repository     { return m.attachments }

// --- crypto spies ---

type spyHasher struct {
	inner       *cryptox.PasswordHasher
	hashCalls   int
	verifyCalls int
}

func (h *spyHasher) Hash(password string) (string, []byte, error) {
	h.hashCalls++
	return h.inner.Hash(password)
}

func (h *spyHasher) Verify(hash, candidate string, salt []byte) (bool, error) {
	h.verifyCalls++
	return h.inner.Verify(hash, candidate, salt)
}

type spyIssuer struct {
	inner        *auth.TokenIssuer
	accessCalls  int
	refreshCalls int
}

func (i *spyIssuer) IssueAccessToken(u *models.User) (string, time.Time, error) {
	i.accessCalls++
	return i.inner.IssueAccessToken(u)
}

func (i *spyIssuer) IssueRefreshToken() (*models.GeneratedRefreshToken, error) {
	i.refreshCalls++
	return i.inner.IssueRefreshToken()
}

func (i *spyIssuer) Hash(raw string) string { return i.inner.Hash(raw) }

func newSpyIssuer(clock timex.Clock) *spyIssuer {
	return &spyIssuer{inner: auth.NewTokenIssuer(auth.Options{
		SigningKey:      []byte("0123456789abcdef0123456789abcdef"),
		Issuer:          "boardforge",
		Audience:        "boardforge-clients",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}, clock)}
}
