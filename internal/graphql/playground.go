package graphql

import (
	"fmt"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

const graphiqlVersion = "3.8.3"

const playgroundTemplate = `<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>forum GraphiQL</title>
    <style>
      body {
        height: 100%%;
        margin: 0;
        overflow: hidden;
      }
      #graphiql {
        height: 100vh;
      }
    </style>
    <link rel="stylesheet" href="https://unpkg.com/graphiql@%[1]s/graphiql.min.css">
  </head>
  <body>
    <div id="graphiql">Loading...</div>
    <script crossorigin src="https://unpkg.com/react@18/umd/react.production.min.js"></script>
    <script crossorigin src="https://unpkg.com/react-dom@18/umd/react-dom.production.min.js"></script>
    <script crossorigin src="https://unpkg.com/graphiql@%[1]s/graphiql.min.js"></script>
    <script>
      const fetcher = GraphiQL.createFetcher({
        url: window.location.href,
        fetch: (input, init) => fetch(input, { ...init, credentials: "include" }),
      });
      const root = ReactDOM.createRoot(document.getElementById("graphiql"));
      root.render(React.createElement(GraphiQL, { fetcher: fetcher }));
    </script>
  </body>
</html>
`

// playgroundPage renders the minified GraphiQL page.
func playgroundPage() ([]byte, error) {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)

	page, err := m.Bytes("text/html", []byte(fmt.Sprintf(playgroundTemplate, graphiqlVersion)))
	if err != nil {
		return nil, fmt.Errorf("failed to minify playground page: %w", err)
	}
	return page, nil
}
