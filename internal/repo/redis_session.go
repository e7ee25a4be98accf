package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/sessionauth/internal/models"
	"github.com/Skotchmaster/sessionauth/internal/session"
)

var _ session.Store = (*RedisSessions)(nil)

// Both keys are removed together; the returned count tells the caller whether it won.
var deleteSessionLua = redis.NewScript(`
local removed = redis.call("DEL", KEYS[1], KEYS[2])
redis.call("SREM", KEYS[3], ARGV[1])
return removed
`)

// RedisSessions keeps each session under an access key and a refresh key. Both expire with
// the refresh lifetime, so expired refresh tokens disappear without a reaper.
type RedisSessions struct {
	Client     redis.UniversalClient
	RefreshTTL time.Duration
	Prefix     string
}

type redisRecord struct {
	UserID             uint      `json:"user_id"`
	AccessToken        string    `json:"access"`
	RefreshToken       string    `json:"refresh"`
	AccessTokenExpires time.Time `json:"access_expires"`
	RefreshTokenDate   time.Time `json:"refresh_date"`
}

func NewRedisSessions(client redis.UniversalClient, refreshTTL time.Duration) *RedisSessions {
	return &RedisSessions{Client: client, RefreshTTL: refreshTTL, Prefix: "sess"}
}

func (r *RedisSessions) accessKey(h string) string  { return r.Prefix + ":a:" + h }
func (r *RedisSessions) refreshKey(h string) string { return r.Prefix + ":r:" + h }
func (r *RedisSessions) userKey(id uint) string     { return fmt.Sprintf("%s:u:%d", r.Prefix, id) }

func member(s *models.Session) string { return s.AccessToken + ":" + s.RefreshToken }

func (r *RedisSessions) Create(ctx context.Context, s *models.Session) error {
	ttl := time.Until(s.RefreshTokenDate.Add(r.RefreshTTL))
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	data, err := json.Marshal(redisRecord{
		UserID:             s.UserID,
		AccessToken:        s.AccessToken,
		RefreshToken:       s.RefreshToken,
		AccessTokenExpires: s.AccessTokenExpires,
		RefreshTokenDate:   s.RefreshTokenDate,
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ok, err := r.Client.SetNX(ctx, r.refreshKey(s.RefreshToken), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("refresh token collision")
	}

	_, err = r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.accessKey(s.AccessToken), data, ttl)
		p.SAdd(ctx, r.userKey(s.UserID), member(s))
		p.Expire(ctx, r.userKey(s.UserID), r.RefreshTTL)
		return nil
	})
	return err
}

func (r *RedisSessions) get(ctx context.Context, key string) (*models.Session, error) {
	data, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec redisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &models.Session{
		UserID:             rec.UserID,
		AccessToken:        rec.AccessToken,
		RefreshToken:       rec.RefreshToken,
		AccessTokenExpires: rec.AccessTokenExpires,
		RefreshTokenDate:   rec.RefreshTokenDate,
	}, nil
}

func (r *RedisSessions) FindByAccess(ctx context.Context, accessHash string) (*models.Session, error) {
	return r.get(ctx, r.accessKey(accessHash))
}

func (r *RedisSessions) FindByRefresh(ctx context.Context, refreshHash string, issuedAfter time.Time) (*models.Session, error) {
	s, err := r.get(ctx, r.refreshKey(refreshHash))
	if err != nil {
		return nil, err
	}
	if !s.RefreshTokenDate.After(issuedAfter) {
		return nil, session.ErrNotFound
	}
	return s, nil
}

func (r *RedisSessions) Delete(ctx context.Context, s *models.Session) (bool, error) {
	n, err := deleteSessionLua.Run(ctx, r.Client,
		[]string{r.refreshKey(s.RefreshToken), r.accessKey(s.AccessToken), r.userKey(s.UserID)},
		member(s),
	).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisSessions) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	members, err := r.Client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, 2*len(members)+1)
	for _, m := range members {
		access, refresh, ok := strings.Cut(m, ":")
		if !ok {
			continue
		}
		keys = append(keys, r.accessKey(access), r.refreshKey(refresh))
	}
	keys = append(keys, r.userKey(userID))

	if _, err := r.Client.Del(ctx, keys...).Result(); err != nil {
		return 0, err
	}
	return int64(len(members)), nil
}

// DeleteExpired is a no-op: key TTLs already expire refresh sessions.
func (r *RedisSessions) DeleteExpired(ctx context.Context, issuedBefore time.Time) (int64, error) {
	return 0, nil
}
