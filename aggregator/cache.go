package aggregator

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/register_backend/config"
)

// ReportCachePrefix namespaces memoized reports in Redis. The sync engine
// and the RAZ workflows invalidate this whole prefix whenever a sale,
// remote merge or reset changes what a report would say.
const ReportCachePrefix = "report:"

func reportCacheTTL() time.Duration {
	return config.DurationFromEnvSeconds("REPORT_CACHE_TTL_SECONDS", 60*time.Second)
}

func reportCacheKey(window Window, sessionId string) string {
	switch window.Kind {
	case WindowSession:
		return fmt.Sprintf("%ssession:%s", ReportCachePrefix, sessionId)
	default:
		return fmt.Sprintf("%stoday:%s:%d", ReportCachePrefix,
			window.Reference.Format("2006-01-02"), window.LastRAZCutoff.Unix())
	}
}

func cachedReport(key string) (*Report, bool) {
	var report Report
	found, err := config.GetRedisObject(key, &report)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"module":   "aggregator",
			"funcName": "cachedReport",
			"key":      key,
		}).Warn(err.Error())
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &report, true
}

func storeReport(key string, report *Report) {
	if err := config.SetRedisObject(key, report, reportCacheTTL()); err != nil {
		logrus.WithFields(logrus.Fields{
			"module":   "aggregator",
			"funcName": "storeReport",
			"key":      key,
		}).Warn(err.Error())
	}
}

// InvalidateReportCache drops every memoized report. Safe when Redis is
// absent; reports are then just computed from scratch each time.
func InvalidateReportCache() {
	if err := config.RemoveRedisKeysByPrefix(ReportCachePrefix); err != nil {
		logrus.WithFields(logrus.Fields{
			"module":   "aggregator",
			"funcName": "InvalidateReportCache",
		}).Warn(err.Error())
	}
}
