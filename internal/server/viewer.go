package server

// viewerHTML is the single-page Leaflet viewer. It lists completed runs and
// draws the composite artifact colored by the classification the pipeline
// already attached, so the page needs no knowledge of the threshold tables.
const viewerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Coastal Vulnerability Index</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
  html, body { height: 100%; margin: 0; font-family: sans-serif; }
  #map { height: 100%; }
  #panel {
    position: absolute; top: 10px; right: 10px; z-index: 1000;
    background: #fff; padding: 10px 12px; border-radius: 4px;
    box-shadow: 0 1px 5px rgba(0,0,0,.4); max-width: 320px;
  }
  #legend div { margin-top: 2px; }
  #legend span {
    display: inline-block; width: 14px; height: 14px;
    margin-right: 6px; vertical-align: middle;
  }
</style>
</head>
<body>
<div id="map"></div>
<div id="panel">
  <strong>CVI runs</strong><br>
  <select id="runs" style="width:100%;margin-top:6px"></select>
  <div id="meta"></div>
  <div id="legend"></div>
</div>
<script>
var map = L.map('map').setView([0, 0], 2);
L.tileLayer('https://tile.openstreetmap.org/{z}/{x}/{y}.png', {
  attribution: '&copy; OpenStreetMap contributors'
}).addTo(map);

var layer = null;

function loadRun(run) {
  if (layer) { map.removeLayer(layer); layer = null; }
  document.getElementById('meta').textContent = '';
  document.getElementById('legend').innerHTML = '';
  if (!run) { return; }

  fetch('/api/runs/' + run.id + '/artifacts/transects_with_cvi_equal.geojson')
    .then(function (r) {
      if (!r.ok) { throw new Error('artifact missing'); }
      return r.json();
    })
    .then(function (fc) {
      var classes = {};
      layer = L.geoJSON(fc, {
        style: function (f) {
          var p = f.properties || {};
          classes[p.CVI_equal_label || 'No Data'] = p.CVI_equal_color || 'gray';
          return { color: p.CVI_equal_color || 'gray', weight: 3 };
        },
        onEachFeature: function (f, l) {
          var p = f.properties || {};
          var cvi = (p.CVI_equal == null) ? 'n/a' : p.CVI_equal.toFixed(2);
          l.bindPopup('<b>' + p.label + '</b><br>CVI: ' + cvi +
            '<br>Class: ' + (p.CVI_equal_label || 'No Data'));
        }
      }).addTo(map);
      if (layer.getBounds().isValid()) { map.fitBounds(layer.getBounds().pad(0.2)); }

      var legend = document.getElementById('legend');
      Object.keys(classes).forEach(function (label) {
        var row = document.createElement('div');
        row.innerHTML = '<span style="background:' + classes[label] + '"></span>' + label;
        legend.appendChild(row);
      });

      var meanCVI = run.result && run.result.mean_cvi;
      document.getElementById('meta').textContent = run.area +
        (meanCVI == null ? '' : ' | mean CVI ' + meanCVI.toFixed(2));
    })
    .catch(function (err) {
      document.getElementById('meta').textContent = 'failed to load: ' + err.message;
    });
}

fetch('/api/runs?status=complete')
  .then(function (r) { return r.json(); })
  .then(function (runs) {
    var sel = document.getElementById('runs');
    sel.appendChild(new Option('select a run…', ''));
    runs.forEach(function (run) {
      sel.appendChild(new Option(run.area + ' (' + run.created_at.slice(0, 10) + ')', run.id));
    });
    sel.onchange = function () {
      loadRun(runs.find(function (run) { return run.id === sel.value; }));
    };
  });
</script>
</body>
</html>
`
