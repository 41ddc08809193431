package tonypi

import (
	"github.com/teslashibe/go-tonypi/pkg/engine"
	"github.com/teslashibe/go-tonypi/pkg/web"
)

// sessionSource is the part of the engine the dashboard reads.
type sessionSource interface {
	Session() engine.Session
}

// dashboard copies engine events onto the web status and conversation.
type dashboard struct {
	web    *web.Server
	engine sessionSource
	dryRun bool
}

func (d *dashboard) stateChanged(_, to engine.State) {
	sess := d.engine.Session()
	d.web.UpdateStatus(func(st *web.Status) {
		st.State = to.String()
		st.SessionID = sess.ID
		st.Turns = sess.Turns
		st.DryRun = d.dryRun
		if to == engine.Active {
			st.LastUser, st.LastReply, st.LastTool, st.Outcome = "", "", "", ""
		}
	})
}

func (d *dashboard) turnFinished(t engine.Turn) {
	if t.User != "" {
		d.web.AddConversation("user", t.User)
	}
	if t.Tool != "" {
		d.web.AddConversation("tool", t.Tool+" → "+t.Result)
	}
	if t.Reply != "" {
		d.web.AddConversation("robot", t.Reply)
	}
	d.web.UpdateStatus(func(st *web.Status) {
		st.SessionID = t.SessionID
		st.Turns = t.Number
		st.LastUser = t.User
		st.LastReply = t.Reply
		st.LastTool = t.Tool
		st.Outcome = t.Outcome.String()
		st.DryRun = d.dryRun
	})
}
