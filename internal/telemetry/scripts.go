package telemetry

import "github.com/go-redis/redis/v8"

// mutateScript 原子地完成一次写入：
// 节点不存在时先写默认值（含新的 generation），合并字段，处理 panicMode，version+1，
// 把写入后的快照追加到 stream，发布变更通知，最后返回完整 hash。
//
// KEYS: [1]=hash [2]=changes channel [3]=stream
// ARGV: [1]=patient_id [2]=updatedAt [3]=stream maxlen [4]=panic op ("" | toggle | true | false)
//       [5]=generation（仅新建节点时使用） [6..]=field/value
var mutateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('HSET', KEYS[1], 'cardiovascular', '0', 'sudor', '0', 'temperatura', '0', 'panicMode', 'false', 'version', '0', 'generation', ARGV[5])
end
for i = 6, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
if ARGV[4] == 'toggle' then
  if redis.call('HGET', KEYS[1], 'panicMode') == 'true' then
    redis.call('HSET', KEYS[1], 'panicMode', 'false')
  else
    redis.call('HSET', KEYS[1], 'panicMode', 'true')
  end
elseif ARGV[4] ~= '' then
  redis.call('HSET', KEYS[1], 'panicMode', ARGV[4])
end
redis.call('HSET', KEYS[1], 'updatedAt', ARGV[2])
local version = redis.call('HINCRBY', KEYS[1], 'version', 1)
local h = redis.call('HMGET', KEYS[1], 'cardiovascular', 'sudor', 'temperatura', 'panicMode')
local generation = redis.call('HGET', KEYS[1], 'generation') or ''
redis.call('XADD', KEYS[3], 'MAXLEN', '~', ARGV[3], '*',
  'patient_id', ARGV[1], 'version', tostring(version), 'generation', generation,
  'cardiovascular', h[1], 'sudor', h[2], 'temperatura', h[3], 'panicMode', h[4], 'updatedAt', ARGV[2])
redis.call('PUBLISH', KEYS[2], ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

// initScript 节点不存在时写入默认快照（先到先得），已存在则不做任何修改
//
// KEYS: [1]=hash [2]=changes channel
// ARGV: [1]=patient_id [2]=updatedAt [3]=generation
var initScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'cardiovascular', '0', 'sudor', '0', 'temperatura', '0', 'panicMode', 'false', 'updatedAt', ARGV[2], 'version', '0', 'generation', ARGV[3])
redis.call('PUBLISH', KEYS[2], ARGV[1])
return 1
`)
