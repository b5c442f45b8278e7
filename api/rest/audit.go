package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/heropets/server/audit"
	mw "github.com/heropets/server/middleware"
)

// recordAudit queues an audit entry for the current request. A nil service
// disables auditing.
func recordAudit(svc *audit.Service, c *gin.Context, action, target string, detail interface{}, err error) {
	if svc == nil {
		return
	}
	entry := audit.Entry{
		TraceID: mw.GetTraceID(c),
		Action:  action,
		Target:  target,
		Detail:  detail,
		IP:      c.ClientIP(),
	}
	if uid := mw.GetUserID(c); uid != 0 {
		entry.UserID = &uid
	}
	if err != nil {
		entry.Error = err.Error()
	}
	svc.Log(entry)
}
