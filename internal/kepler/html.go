package kepler

import (
	"bytes"
	"encoding/json"
	"html/template"
	"os"

	"github.com/rotisserie/eris"
)

// htmlTemplate is a self-contained Kepler.gl page. The bundle loads from the
// unpkg CDN; datasets and config are embedded as JSON so the file opens
// offline-rendered data with no server.
const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <script src="https://unpkg.com/react@18.2.0/umd/react.production.min.js"></script>
  <script src="https://unpkg.com/react-dom@18.2.0/umd/react-dom.production.min.js"></script>
  <script src="https://unpkg.com/redux@4.2.1/dist/redux.min.js"></script>
  <script src="https://unpkg.com/react-redux@8.1.3/dist/react-redux.min.js"></script>
  <script src="https://unpkg.com/styled-components@6.1.8/dist/styled-components.min.js"></script>
  <script src="https://unpkg.com/kepler.gl@3.0.0/umd/keplergl.min.js"></script>
  <style>
    body {margin: 0; padding: 0; overflow: hidden;}
    #app {width: 100vw; height: 100vh;}
  </style>
</head>
<body>
  <div id="app"></div>
  <script>
    const datasets = {{.Datasets}};
    const config = {{.Config}};

    const reducers = Redux.combineReducers({
      keplerGl: KeplerGl.keplerGlReducer.initialState({
        uiState: {readOnly: false, currentModal: null}
      })
    });
    const middlewares = KeplerGl.enhanceReduxMiddleware([]);
    const store = Redux.createStore(reducers, {}, Redux.compose(Redux.applyMiddleware(...middlewares)));

    const KeplerElement = function (props) {
      return React.createElement("div", {style: {position: "absolute", left: 0, width: "100vw", height: "100vh"}},
        React.createElement(KeplerGl.KeplerGl, {
          mapboxApiAccessToken: props.mapboxApiAccessToken || "",
          id: "map",
          width: window.innerWidth,
          height: window.innerHeight
        })
      );
    };

    const app = React.createElement(ReactRedux.Provider, {store},
      React.createElement(KeplerElement, {}));
    ReactDOM.render(app, document.getElementById("app"));

    store.dispatch(KeplerGl.addDataToMap({
      datasets: datasets.map(function (d) {
        return {
          info: {id: d.id, label: d.id},
          data: KeplerGl.processGeojson(d.data)
        };
      }),
      config: config,
      options: {centerMap: false, readOnly: false}
    }));
  </script>
</body>
</html>
`

type htmlData struct {
	Title    string
	Datasets template.JS
	Config   template.JS
}

type datasetJSON struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// ExportHTML renders the map to a standalone HTML file.
func (m *Map) ExportHTML(path, title string) error {
	sets := make([]datasetJSON, 0, len(m.datasets))
	for _, d := range m.datasets {
		data, err := json.Marshal(d.collection)
		if err != nil {
			return eris.Wrapf(err, "kepler: marshal dataset %s", d.name)
		}
		sets = append(sets, datasetJSON{ID: d.name, Data: data})
	}

	datasetsJSON, err := json.Marshal(sets)
	if err != nil {
		return eris.Wrap(err, "kepler: marshal datasets")
	}
	configJSON, err := json.Marshal(versioned{Version: "v1", Config: m.config})
	if err != nil {
		return eris.Wrap(err, "kepler: marshal config")
	}

	tmpl, err := template.New("kepler").Parse(htmlTemplate)
	if err != nil {
		return eris.Wrap(err, "kepler: parse template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, htmlData{
		Title:    title,
		Datasets: template.JS(datasetsJSON),
		Config:   template.JS(configJSON),
	}); err != nil {
		return eris.Wrap(err, "kepler: render template")
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrap(err, "kepler: write html")
	}
	return nil
}

// ConfigJSON returns the versioned configuration as JSON, mainly for tests.
func (m *Map) ConfigJSON() ([]byte, error) {
	data, err := json.Marshal(versioned{Version: "v1", Config: m.config})
	return data, eris.Wrap(err, "kepler: marshal config")
}
