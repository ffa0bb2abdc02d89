package httpclient

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// buildURL joins rawURL to baseURL when rawURL is relative, then appends
// params. The result must parse as an absolute URL.
func buildURL(baseURL, rawURL string, params []QueryParam) (string, error) {
	full := rawURL
	if baseURL != "" && !hasScheme(rawURL) {
		full = strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(rawURL, "/")
	}

	full = appendQuery(full, params)

	u, err := url.Parse(full)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: must be absolute", full)
	}
	return full, nil
}

// appendQuery appends params to rawURL in order, using '&' when rawURL
// already carries a query and '?' otherwise. Keys and values follow
// application/x-www-form-urlencoded escaping. Duplicate keys are kept.
func appendQuery(rawURL string, params []QueryParam) string {
	if len(params) == 0 {
		return rawURL
	}

	var sb strings.Builder
	sb.WriteString(rawURL)
	sep := byte('?')
	if strings.Contains(rawURL, "?") {
		sep = '&'
	}
	for _, p := range params {
		sb.WriteByte(sep)
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(formatParam(p.Value)))
		sep = '&'
	}
	return sb.String()
}

func formatParam(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int8:
		return strconv.FormatInt(int64(val), 10)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint8:
		return strconv.FormatUint(uint64(val), 10)
	case uint16:
		return strconv.FormatUint(uint64(val), 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func hasScheme(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme != ""
}
