package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// dashboardHandler serves a single-page live view of the risk pipeline:
// recent scores over the WebSocket stream plus audit batch stats.
func dashboardHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardHTML)
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
    <title>SentinelX</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', sans-serif; background: #0d1117; color: #c9d1d9; margin: 0; padding: 24px; }
        h1 { color: #e6edf3; font-size: 20px; margin: 0 0 4px; }
        .sub { color: #8b949e; font-size: 13px; margin-bottom: 20px; }
        .cards { display: flex; gap: 12px; margin-bottom: 20px; flex-wrap: wrap; }
        .card { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 14px 18px; min-width: 140px; }
        .card .label { color: #8b949e; font-size: 11px; text-transform: uppercase; letter-spacing: 0.5px; }
        .card .value { font-size: 24px; color: #e6edf3; margin-top: 4px; }
        #events { list-style: none; padding: 0; margin: 0; }
        #events li { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 8px 12px; margin-bottom: 6px; font-size: 13px; font-family: monospace; }
        .tag { display: inline-block; border-radius: 4px; padding: 1px 6px; font-size: 11px; margin-right: 8px; }
        .tag.scan { background: #1f3d2b; color: #56d364; }
        .tag.login_score { background: #1b3a4b; color: #58a6ff; }
        .tag.transfer_score { background: #4b3a1b; color: #d4a72c; }
        .tag.trust_change { background: #4b1b2a; color: #f47068; }
        .tag.batch_cut { background: #2d1b4b; color: #bc8cff; }
        #status { float: right; font-size: 12px; color: #8b949e; }
        #status.live { color: #56d364; }
    </style>
</head>
<body>
    <div id="status">connecting...</div>
    <h1>SentinelX</h1>
    <div class="sub">content scanning, risk scoring, trust enforcement, tamper-evident audit</div>

    <div class="cards">
        <div class="card"><div class="label">Pending events</div><div class="value" id="pending">-</div></div>
        <div class="card"><div class="label">Batches cut</div><div class="value" id="batches">-</div></div>
        <div class="card"><div class="label">Events batched</div><div class="value" id="batched">-</div></div>
        <div class="card"><div class="label">Live events</div><div class="value" id="count">0</div></div>
    </div>

    <ul id="events"></ul>

    <script>
        var count = 0;

        function refreshStats() {
            fetch('/v1/audit/stats').then(function(r) { return r.json(); }).then(function(s) {
                document.getElementById('pending').textContent = s.pendingEvents;
                document.getElementById('batches').textContent = s.totalBatches;
                document.getElementById('batched').textContent = s.totalEventsBatched;
            }).catch(function() {});
        }

        function describe(ev) {
            var d = ev.data || {};
            switch (ev.type) {
            case 'scan':
                return (d.identity || 'anonymous') + ' severity=' + d.severity + ' score=' + d.riskScore;
            case 'login_score':
                return d.identity + ' level=' + d.level + ' score=' + Number(d.score).toFixed(2);
            case 'transfer_score':
                return d.sender + ' -> ' + d.recipient + ' verdict=' + d.verdict;
            case 'trust_change':
                return d.identity + ' ' + d.from + ' -> ' + d.to + ' (' + d.trustScore + ')';
            case 'batch_cut':
                return 'root=' + String(d.merkleRoot).slice(0, 18) + '... events=' + d.eventCount;
            default:
                return JSON.stringify(d);
            }
        }

        function connect() {
            var proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            var ws = new WebSocket(proto + '//' + location.host + '/ws');
            var status = document.getElementById('status');

            ws.onopen = function() {
                status.textContent = 'live';
                status.className = 'live';
                ws.send(JSON.stringify({allEvents: true}));
            };
            ws.onmessage = function(msg) {
                var ev = JSON.parse(msg.data);
                var li = document.createElement('li');
                li.innerHTML = '<span class="tag ' + ev.type + '">' + ev.type + '</span>' + describe(ev);
                var list = document.getElementById('events');
                list.insertBefore(li, list.firstChild);
                while (list.children.length > 50) list.removeChild(list.lastChild);
                document.getElementById('count').textContent = ++count;
                if (ev.type === 'batch_cut') refreshStats();
            };
            ws.onclose = function() {
                status.textContent = 'reconnecting...';
                status.className = '';
                setTimeout(connect, 3000);
            };
        }

        refreshStats();
        setInterval(refreshStats, 15000);
        connect();
    </script>
</body>
</html>`
