package server

// DashboardHTML is the embedded single-page dashboard for loadscope.
// It receives rollup pushes over WebSocket and polls /api/metrics for the
// binned traffic chart.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>loadscope</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, monospace;
    background: #0d1117; color: #c9d1d9; padding: 20px;
  }
  h1 { color: #58a6ff; margin-bottom: 4px; font-size: 1.5em; }
  .subtitle { color: #8b949e; margin-bottom: 20px; font-size: 0.9em; }
  .status-bar {
    display: flex; gap: 20px; margin-bottom: 20px; padding: 12px 16px;
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    align-items: center;
  }
  .status-item { display: flex; flex-direction: column; }
  .status-label { font-size: 0.75em; color: #8b949e; text-transform: uppercase; }
  .status-value { font-size: 1.1em; font-weight: 600; }
  .status-value.connected { color: #3fb950; }
  .status-value.disconnected { color: #f85149; }
  select {
    background: #21262d; color: #c9d1d9; border: 1px solid #30363d;
    padding: 4px 8px; border-radius: 4px; margin-left: auto;
  }
  .stats {
    display: grid; grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
    gap: 12px; margin-bottom: 20px;
  }
  .stat-card {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    padding: 16px; text-align: center;
  }
  .stat-number { font-size: 2em; font-weight: 700; }
  .stat-number.rate { color: #58a6ff; }
  .stat-number.errors { color: #f85149; }
  .stat-number.bytes { color: #d2a8ff; }
  .stat-number.processed { color: #3fb950; }
  .stat-label { font-size: 0.8em; color: #8b949e; margin-top: 4px; }
  .chart-panel {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    padding: 16px; margin-bottom: 20px;
  }
  .chart-header { color: #58a6ff; font-weight: 600; margin-bottom: 12px; }
  .chart {
    display: flex; align-items: flex-end; gap: 2px; height: 180px;
  }
  .bar {
    flex: 1; background: #1f6feb; border-radius: 2px 2px 0 0; min-width: 3px;
    transition: height 0.3s;
  }
  .bar:hover { background: #58a6ff; }
  .empty-state {
    text-align: center; padding: 60px 20px; color: #8b949e;
  }
  .empty-state .icon { font-size: 3em; margin-bottom: 10px; }
</style>
</head>
<body>
<h1>loadscope</h1>
<p class="subtitle">Live replay traffic and capacity advisor</p>

<div class="status-bar">
  <div class="status-item">
    <span class="status-label">Connection</span>
    <span class="status-value disconnected" id="conn-status">Disconnected</span>
  </div>
  <div class="status-item">
    <span class="status-label">Session</span>
    <span class="status-value" id="session-id">&mdash;</span>
  </div>
  <select id="bin-select" onchange="refreshChart()">
    <option value="1m">1 minute bins</option>
    <option value="5m">5 minute bins</option>
    <option value="15m">15 minute bins</option>
    <option value="30m">30 minute bins</option>
    <option value="1h">1 hour bins</option>
  </select>
</div>

<div class="stats">
  <div class="stat-card">
    <div class="stat-number rate" id="stat-rate">0.0</div>
    <div class="stat-label">Requests / sec</div>
  </div>
  <div class="stat-card">
    <div class="stat-number errors" id="stat-errors">0.0%</div>
    <div class="stat-label">Error Rate</div>
  </div>
  <div class="stat-card">
    <div class="stat-number bytes" id="stat-bytes">0</div>
    <div class="stat-label">Bytes / sec</div>
  </div>
  <div class="stat-card">
    <div class="stat-number processed" id="stat-processed">0</div>
    <div class="stat-label">Records Replayed</div>
  </div>
</div>

<div class="chart-panel">
  <div class="chart-header">Requests per bin</div>
  <div class="chart" id="chart">
    <div class="empty-state">
      <div class="icon">&#128200;</div>
      <p>Waiting for replay traffic...</p>
    </div>
  </div>
</div>

<script>
function connect() {
  const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
  const ws = new WebSocket(proto + '//' + location.host + '/ws');

  ws.onopen = () => {
    document.getElementById('conn-status').textContent = 'Connected';
    document.getElementById('conn-status').className = 'status-value connected';
  };

  ws.onclose = () => {
    document.getElementById('conn-status').textContent = 'Disconnected';
    document.getElementById('conn-status').className = 'status-value disconnected';
    setTimeout(connect, 2000);
  };

  ws.onmessage = (e) => {
    const update = JSON.parse(e.data);
    applyUpdate(update);
  };
}

function applyUpdate(update) {
  document.getElementById('session-id').textContent = (update.session_id || '').slice(0, 8);
  document.getElementById('stat-rate').textContent = update.rollups.request_rate.toFixed(1);
  document.getElementById('stat-errors').textContent = (update.rollups.error_rate * 100).toFixed(1) + '%';
  document.getElementById('stat-bytes').textContent = formatBytes(update.rollups.throughput);
  document.getElementById('stat-processed').textContent = update.processed;
}

function formatBytes(n) {
  if (n >= 1048576) return (n / 1048576).toFixed(1) + 'M';
  if (n >= 1024) return (n / 1024).toFixed(1) + 'K';
  return n.toFixed(0);
}

async function refreshChart() {
  const bin = document.getElementById('bin-select').value;
  try {
    const resp = await fetch('/api/metrics?bin=' + bin);
    if (!resp.ok) return;
    const data = await resp.json();
    renderChart(data.series);
  } catch (e) { /* server restarting; next poll retries */ }
}

function renderChart(series) {
  const chart = document.getElementById('chart');
  if (!series || series.length === 0) return;

  const max = Math.max(...series.map(p => p.request_count), 1);
  chart.innerHTML = '';
  for (const p of series) {
    const bar = document.createElement('div');
    bar.className = 'bar';
    bar.style.height = (p.request_count / max * 100) + '%';
    bar.title = new Date(p.timestamp).toLocaleTimeString() + ': ' + p.request_count + ' requests';
    chart.appendChild(bar);
  }
}

connect();
refreshChart();
setInterval(refreshChart, 3000);
</script>
</body>
</html>`
