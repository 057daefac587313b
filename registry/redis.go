// Package registry Redis storage.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/klejdi94/weft/core"
)

// Redis stores definitions in Redis. Keys under the prefix:
// tpl:<name>:<version> (JSON definition), tpl:<name>:versions (SET),
// tpl:<name>:pin (version number), tpl:names (SET).
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed store. The prefix defaults to "weft:".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "weft:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) defKey(name string, version int) string {
	return fmt.Sprintf("%stpl:%s:%d", r.prefix, name, version)
}

func (r *Redis) versionsKey(name string) string {
	return r.prefix + "tpl:" + name + ":versions"
}

func (r *Redis) pinKey(name string) string {
	return r.prefix + "tpl:" + name + ":pin"
}

func (r *Redis) namesKey() string {
	return r.prefix + "tpl:names"
}

func (r *Redis) versionNumbers(ctx context.Context, name string) ([]int, error) {
	members, err := r.client.SMembers(ctx, r.versionsKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("registry redis: %w", err)
	}
	nums := make([]int, 0, len(members))
	for _, m := range members {
		if n, err := strconv.Atoi(m); err == nil {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

func (r *Redis) pin(ctx context.Context, name string) (int, error) {
	raw, err := r.client.Get(ctx, r.pinKey(name)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("registry redis: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("registry redis: bad pin for %s: %q", name, raw)
	}
	return version, nil
}

func (r *Redis) definition(ctx context.Context, name string, version int) (*core.Definition, error) {
	data, err := r.client.Get(ctx, r.defKey(name, version)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s v%d", core.ErrTemplateNotFound, name, version)
	}
	if err != nil {
		return nil, fmt.Errorf("registry redis: %w", err)
	}
	var def core.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("registry redis: decode %s v%d: %w", name, version, err)
	}
	return &def, nil
}

// Put implements Store.
func (r *Redis) Put(ctx context.Context, def *core.Definition) (*core.Definition, error) {
	stored, err := normalize(def, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	nums, err := r.versionNumbers(ctx, stored.Name)
	if err != nil {
		return nil, err
	}
	if stored.Version == 0 {
		stored.Version = 1
		if len(nums) > 0 {
			stored.Version = nums[len(nums)-1] + 1
		}
	}
	if prev, err := r.definition(ctx, stored.Name, stored.Version); err == nil {
		stored.CreatedAt = prev.CreatedAt
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if err := r.client.Set(ctx, r.defKey(stored.Name, stored.Version), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("registry redis: %w", err)
	}
	if err := r.client.SAdd(ctx, r.versionsKey(stored.Name), strconv.Itoa(stored.Version)).Err(); err != nil {
		return nil, fmt.Errorf("registry redis: %w", err)
	}
	if err := r.client.SAdd(ctx, r.namesKey(), stored.Name).Err(); err != nil {
		return nil, fmt.Errorf("registry redis: %w", err)
	}
	return stored.Copy(), nil
}

// Definition implements Store. Version 0 means latest.
func (r *Redis) Definition(ctx context.Context, name string, version int) (*core.Definition, error) {
	if version == 0 {
		nums, err := r.versionNumbers(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		version = nums[len(nums)-1]
	}
	return r.definition(ctx, name, version)
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, name string, version int) (*core.Template, error) {
	def, err := r.Definition(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Resolve implements Store.
func (r *Redis) Resolve(ctx context.Context, name string) (*core.Template, error) {
	version, err := r.pin(ctx, name)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		exists, err := r.client.SIsMember(ctx, r.namesKey(), name).Result()
		if err != nil {
			return nil, fmt.Errorf("registry redis: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotPinned, name)
	}
	def, err := r.definition(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Pin implements Store. Version 0 pins the latest.
func (r *Redis) Pin(ctx context.Context, name string, version int) error {
	if version == 0 {
		nums, err := r.versionNumbers(ctx, name)
		if err != nil {
			return err
		}
		if len(nums) == 0 {
			return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
		}
		version = nums[len(nums)-1]
	} else if _, err := r.definition(ctx, name, version); err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.pinKey(name), strconv.Itoa(version), 0).Err(); err != nil {
		return fmt.Errorf("registry redis: %w", err)
	}
	return nil
}

// List implements Store.
func (r *Redis) List(ctx context.Context, filter Filter) ([]Info, error) {
	names, err := r.client.SMembers(ctx, r.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("registry redis: %w", err)
	}
	sort.Strings(names)
	var out []Info
	for _, name := range names {
		def, err := r.Definition(ctx, name, 0)
		if err != nil {
			if errors.Is(err, core.ErrTemplateNotFound) {
				continue
			}
			return nil, err
		}
		pin, err := r.pin(ctx, name)
		if err != nil {
			return nil, err
		}
		info := infoOf(def, pin != 0)
		if filter.matches(info) {
			out = append(out, info)
		}
	}
	return filter.page(out), nil
}

// Versions implements Store. Unknown names yield an empty result.
func (r *Redis) Versions(ctx context.Context, name string) ([]Info, error) {
	nums, err := r.versionNumbers(ctx, name)
	if err != nil {
		return nil, err
	}
	pin, err := r.pin(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(nums))
	for _, v := range nums {
		def, err := r.definition(ctx, name, v)
		if err != nil {
			return nil, err
		}
		out = append(out, infoOf(def, v == pin))
	}
	return out, nil
}

// Delete implements Store. Version 0 removes every version and the pin.
func (r *Redis) Delete(ctx context.Context, name string, version int) error {
	nums, err := r.versionNumbers(ctx, name)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
	}
	if version == 0 {
		keys := []string{r.versionsKey(name), r.pinKey(name)}
		for _, v := range nums {
			keys = append(keys, r.defKey(name, v))
		}
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("registry redis: %w", err)
		}
		return r.client.SRem(ctx, r.namesKey(), name).Err()
	}
	found := false
	for _, v := range nums {
		if v == version {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s v%d", core.ErrTemplateNotFound, name, version)
	}
	if err := r.client.Del(ctx, r.defKey(name, version)).Err(); err != nil {
		return fmt.Errorf("registry redis: %w", err)
	}
	if err := r.client.SRem(ctx, r.versionsKey(name), strconv.Itoa(version)).Err(); err != nil {
		return fmt.Errorf("registry redis: %w", err)
	}
	if pin, err := r.pin(ctx, name); err == nil && pin == version {
		r.client.Del(ctx, r.pinKey(name))
	}
	if len(nums) == 1 {
		return r.client.SRem(ctx, r.namesKey(), name).Err()
	}
	return nil
}

var _ Store = (*Redis)(nil)
