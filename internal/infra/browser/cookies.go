package browser

import (
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/go-rod/rod/lib/proto"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
)

func epochToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}

func cdpCookieParams(cookies []entity.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if !c.IsSession() {
			expires := cdp.TimeSinceEpoch(epochToTime(c.Expires))
			p.Expires = &expires
		}
		params = append(params, p)
	}
	return params
}

func fromCDPCookies(cookies []*network.Cookie) []entity.Cookie {
	out := make([]entity.Cookie, 0, len(cookies))
	for _, c := range cookies {
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		out = append(out, entity.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

func rodCookieParams(cookies []entity.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			p.SameSite = proto.NetworkCookieSameSite(c.SameSite)
		}
		if !c.IsSession() {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return params
}

func fromRodCookies(cookies []*proto.NetworkCookie) []entity.Cookie {
	out := make([]entity.Cookie, 0, len(cookies))
	for _, c := range cookies {
		expires := float64(c.Expires)
		if c.Session {
			expires = -1
		}
		out = append(out, entity.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}
