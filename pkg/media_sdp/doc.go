// Package media_sdp согласует SDP одного плеча вызова и отражает результат во
// флагах медиа состояния сессии.
//
// # Компоненты
//
//   - Negotiator - передает SDP медиа слою и интерпретирует (accepted, shouldReply)
//   - Activator - активирует RTP транспорт под мьютексом плеча
//   - Leg - фасад: замена подстрок SDP, EstablishMedia, сборка multipart тела
//   - State - монотонные флаги sdp_negotiated, no_reply, rtp_active, io_active, early_media
//
// Сам пакет SDP не разбирает: семантика (кодеки, адреса) принадлежит MediaLayer,
// сессия и переменные - слою сигнализации (Session).
//
// # Использование
//
//	leg, err := media_sdp.NewLeg(session, mediaLayer, media_sdp.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//
//	if err := leg.EstablishMedia(ctx, remoteSDP, media_sdp.SDPTypeOffer); err != nil {
//	    if media_sdp.IsSDPError(err, media_sdp.ErrorCodeNegotiationRejected) {
//	        // 488 Not Acceptable Here
//	    }
//	    return err
//	}
//
//	body, err := leg.BuildMultipart(localSDP)
//	if err != nil {
//	    return err
//	}
//	multipart.Attach(response, localSDP, body)
package media_sdp
