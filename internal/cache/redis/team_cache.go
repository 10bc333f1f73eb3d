package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// TeamCache implements domain.TeamCache. The whole ledger view lives in one
// hash: one JSON field per team plus a "seq" field naming the engine event
// it reflects, so readers can tell how fresh it is.
type TeamCache struct {
	rdb *redis.Client
}

// NewTeamCache creates a TeamCache backed by the given Client.
func NewTeamCache(c *Client) *TeamCache {
	return &TeamCache{rdb: c.Underlying()}
}

const (
	teamsKey = keyPrefix + "teams"
	seqField = "seq"
)

// storeTeamsLua replaces the hash only when ARGV[1] is newer than the stored
// seq, so a slow writer cannot roll the view back.
const storeTeamsLua = `
local cur = tonumber(redis.call('HGET', KEYS[1], 'seq') or '0')
if tonumber(ARGV[1]) <= cur then
    return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], 'seq', ARGV[1])
for i = 2, #ARGV, 2 do
    redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1
`

var storeTeamsScript = redis.NewScript(storeTeamsLua)

// SetTeams stores the ledger view as of event seq. Older writes are ignored.
func (tc *TeamCache) SetTeams(ctx context.Context, seq uint64, teams []domain.Team) error {
	args := make([]any, 0, 1+2*len(teams))
	args = append(args, seq)
	for _, t := range teams {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("redis: marshal team %s: %w", t.ID, err)
		}
		args = append(args, t.ID, data)
	}
	if err := storeTeamsScript.Run(ctx, tc.rdb, []string{teamsKey}, args...).Err(); err != nil {
		return fmt.Errorf("redis: set teams: %w", err)
	}
	return nil
}

// Teams returns the cached ledger view sorted by team code and the event seq
// it reflects. It returns domain.ErrNotFound when nothing has been cached.
func (tc *TeamCache) Teams(ctx context.Context) ([]domain.Team, uint64, error) {
	vals, err := tc.rdb.HGetAll(ctx, teamsKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis: get teams: %w", err)
	}
	if len(vals) == 0 {
		return nil, 0, domain.ErrNotFound
	}

	seq, err := strconv.ParseUint(vals[seqField], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("redis: parse teams seq: %w", err)
	}

	teams := make([]domain.Team, 0, len(vals)-1)
	for field, raw := range vals {
		if field == seqField {
			continue
		}
		var t domain.Team
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, 0, fmt.Errorf("redis: unmarshal team %s: %w", field, err)
		}
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Code < teams[j].Code })
	return teams, seq, nil
}

// Compile-time interface check.
var _ domain.TeamCache = (*TeamCache)(nil)
