package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resolvedVariantsTTL = 10 * time.Minute

func resolvedVariantsCacheKey(templateID uint) string {
	return fmt.Sprintf("template:%d:resolved_variants", templateID)
}

// invalidateResolvedVariants 在任何变体变更后删除解析缓存。
// 缓存只是派生值的快照，删除失败不阻断请求。
func invalidateResolvedVariants(ctx context.Context, client *redis.Client, templateID uint) {
	if client == nil {
		return
	}
	_ = client.Del(ctx, resolvedVariantsCacheKey(templateID)).Err()
}

func templateEventChannel(templateID uint) string {
	return fmt.Sprintf("template_events:%d", templateID)
}

// publishTemplateEvent 把模板变更事件推送给订阅中的编辑器会话。
func publishTemplateEvent(ctx context.Context, client *redis.Client, templateID uint, payload []byte) {
	if client == nil {
		return
	}
	_ = client.Publish(ctx, templateEventChannel(templateID), payload).Err()
}
