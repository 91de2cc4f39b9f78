package api

import (
	"gift_registry/internal/config"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmin_RequiresAdmin(t *testing.T) {
	e := newEnv(t)
	user, _ := e.register("a@x.com")

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/api/admin/stats", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/admin/stats", nil, user).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/api/admin/users", nil, user).Code)

	w := e.do(http.MethodGet, "/api/admin/me", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["is_admin"])

	admin, _ := e.register("admin@example.com")
	w = e.do(http.MethodGet, "/api/admin/me", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["is_admin"])
}

func TestAdminStats(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	admin, _ := e.register("admin@example.com")
	id := e.createRegistry(ann, "ann-reg")
	flights := e.createFund(ann, id, gin.H{"title": "Flights"})
	hotel := e.createFund(ann, id, gin.H{"title": "Hotel"})
	e.contribute(gin.H{"fund_id": flights, "amount": 10})
	e.contribute(gin.H{"fund_id": hotel, "amount": 40})
	e.contribute(gin.H{"fund_id": hotel, "amount": 5})

	w := e.do(http.MethodGet, "/api/admin/stats", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, map[string]any{"users": float64(2), "registries": float64(1), "funds": float64(2), "contributions": float64(3)}, body["counts"])
	assert.Equal(t, false, body["cached"])
	assert.Len(t, body["last_users"], 2)
	assert.Len(t, body["last_registries"], 1)

	top := body["top_funds"].([]any)
	require.Len(t, top, 2)
	assert.Equal(t, hotel, top[0].(map[string]any)["fund_id"])
	assert.Equal(t, float64(45), top[0].(map[string]any)["raised"])
	assert.Equal(t, float64(2), top[0].(map[string]any)["count"])
}

func TestAdminStats_ServedFromCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	e := newEnv(t, func(_ *config.Config, d *Deps) { d.Redis = rdb })
	admin, _ := e.register("admin@example.com")

	mock.ExpectGet(statsCacheKey).SetVal(`{"counts":{"users":42},"last_users":[],"last_registries":[],"top_funds":[]}`)
	w := e.do(http.MethodGet, "/api/admin/stats", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, float64(42), body["counts"].(map[string]any)["users"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminMetrics(t *testing.T) {
	e := newEnv(t)
	ann, _ := e.register("a@x.com")
	admin, _ := e.register("admin@example.com")

	upcoming := e.createRegistry(ann, "upcoming")
	e.do(http.MethodPut, "/api/registries/"+upcoming, gin.H{"event_date": "2999-01-01"}, ann)
	past := e.createRegistry(ann, "past-event")
	e.do(http.MethodPut, "/api/registries/"+past, gin.H{"event_date": "2000-01-01"}, ann)
	undated := e.createRegistry(ann, "undated")
	locked := e.createRegistry(ann, "locked-one")

	e.createFund(ann, upcoming, gin.H{"title": "Visible"})
	e.createFund(ann, upcoming, gin.H{"title": "Hidden", "visible": false})
	lockedFund := e.createFund(ann, locked, gin.H{"title": "Locked"})
	f := e.createFund(ann, undated, gin.H{"title": "Undated"})
	e.contribute(gin.H{"fund_id": f, "amount": 10})
	e.contribute(gin.H{"fund_id": lockedFund, "amount": 30})
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/admin/registries/"+locked+"/lock", gin.H{"locked": true}, admin).Code)

	w := e.do(http.MethodGet, "/api/admin/metrics", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(2), body["active_events"])
	assert.Equal(t, float64(2), body["active_gifts"])
	assert.Equal(t, float64(20), body["average_amount"])
	assert.Equal(t, float64(30), body["max_amount"])
}

func TestAdminListUsers_SearchAndPaging(t *testing.T) {
	e := newEnv(t)
	admin, _ := e.register("admin@example.com")
	e.register("alice@x.com")
	e.register("bob@x.com")
	e.register("under_score@x.com")

	w := e.do(http.MethodGet, "/api/admin/users?query=ALICE", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, "alice@x.com", body["users"].([]any)[0].(map[string]any)["email"])

	// _ is matched literally
	w = e.do(http.MethodGet, "/api/admin/users?query=r_s", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = e.do(http.MethodGet, "/api/admin/users?page=2&page_size=3", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(4), body["total"])
	assert.Equal(t, float64(2), body["total_pages"])
	assert.Equal(t, float64(2), body["page"])
	assert.Len(t, body["users"], 1)
}

func TestAdminLookupAndDetail(t *testing.T) {
	e := newEnv(t)
	admin, _ := e.register("admin@example.com")
	ann, annID := e.register("a@x.com")
	_, bobID := e.register("b@x.com")
	id := e.createRegistry(ann, "ann-reg")

	w := e.do(http.MethodGet, "/api/admin/users/lookup?ids="+annID+",,"+bobID+",missing", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeList(t, w)
	require.Len(t, list, 2)
	assert.NotContains(t, list[0], "is_admin")

	w = e.do(http.MethodGet, "/api/admin/users/"+annID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "a@x.com", body["user"].(map[string]any)["email"])
	regs := body["registries"].([]any)
	require.Len(t, regs, 1)
	assert.Equal(t, id, regs[0].(map[string]any)["id"])

	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/admin/users/missing", nil, admin).Code)
}

func TestAdminRegistries(t *testing.T) {
	e := newEnv(t)
	admin, _ := e.register("admin@example.com")
	ann, _ := e.register("a@x.com")
	id := e.createRegistry(ann, "ann-reg")
	e.createRegistry(ann, "second-reg")
	fundID := e.createFund(ann, id, gin.H{"title": "Flights", "goal": 200, "visible": false})
	e.contribute(gin.H{"fund_id": fundID, "amount": 50})

	w := e.do(http.MethodGet, "/api/admin/registries?query=SECOND", nil, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(1), body["total"])
	reg := body["registries"].([]any)[0].(map[string]any)
	assert.Equal(t, "a@x.com", reg["owner_email"])
	assert.Equal(t, "second-reg", reg["slug"])

	w = e.do(http.MethodGet, "/api/admin/registries", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total"])

	w = e.do(http.MethodGet, "/api/admin/registries/"+id+"/funds", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	funds := decodeList(t, w)
	require.Len(t, funds, 1)
	assert.Equal(t, float64(50), funds[0]["raised"])
	assert.Equal(t, float64(25), funds[0]["progress"])
}

func TestAdminLock_InvalidatesCacheAndAudits(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	e := newEnv(t, func(_ *config.Config, d *Deps) { d.Redis = rdb })
	admin, _ := e.register("admin@example.com")
	ann, _ := e.register("a@x.com")
	id := e.createRegistry(ann, "ann-reg")

	mock.ExpectDel(statsCacheKey, metricsCacheKey).SetVal(2)
	w := e.do(http.MethodPost, "/api/admin/registries/"+id+"/lock", gin.H{"locked": true, "reason": "fraud check"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())

	w = e.do(http.MethodGet, "/api/registries/"+id, nil, ann)
	reg := decode(t, w)
	assert.Equal(t, true, reg["locked"])
	assert.Equal(t, "fraud check", reg["lock_reason"])

	w = e.do(http.MethodGet, "/api/registries/"+id+"/audit", nil, ann)
	logs := decodeList(t, w)
	assert.Equal(t, "registry.lock", logs[0]["action"])

	assert.Equal(t, http.StatusUnprocessableEntity, e.do(http.MethodPost, "/api/admin/registries/"+id+"/lock", gin.H{"reason": "x"}, admin).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/admin/registries/missing/lock", gin.H{"locked": true}, admin).Code)
}
