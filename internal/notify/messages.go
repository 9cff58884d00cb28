package notify

// User-facing replies (Indonesian, the deployment locale).
const (
	MsgInvalidDate       = `Format tanggal dan waktu tidak valid. Gunakan format seperti "/set-meeting 5 januari 19:00 Diskusi Project"`
	MsgScheduleFailed    = "Terjadi kesalahan saat menjadwalkan pertemuan. Silakan coba lagi."
	MsgScheduled         = "Pertemuan berhasil dijadwalkan"
	MsgNoUpcoming        = "Tidak ada pertemuan yang akan datang."
	MsgListSent          = "Daftar pertemuan berhasil dikirim"
	MsgListFailed        = "Terjadi kesalahan saat mengambil daftar pertemuan. Silakan coba lagi."
	MsgCancelMissing     = `Silakan tentukan pertemuan yang akan dibatalkan. Contoh: "/cancel-meeting 1" atau "/cancel-meeting Diskusi Project"`
	MsgCancelInvalidIdx  = "Indeks pertemuan tidak valid. Tersedia %d pertemuan mendatang."
	MsgCancelNotFound    = `Tidak dapat menemukan pertemuan dengan judul "%s".`
	MsgCancelForbidden   = "Anda tidak memiliki izin untuk membatalkan pertemuan ini. Hanya pembuat pertemuan atau admin grup yang dapat membatalkannya."
	MsgCancelled         = "Pertemuan berhasil dibatalkan"
	MsgCancelFailed      = "Terjadi kesalahan saat membatalkan pertemuan. Silakan coba lagi."
	MsgReminderBadTime   = `Maaf, saya tidak bisa memahami waktu meeting. Mohon gunakan format yang jelas, contoh: "@bot ingetin untuk meeting pak bon jam 2 tanggal 14 november 2025"`
	MsgReminderPast      = "Maaf, waktu meeting sudah lewat. Mohon tentukan waktu yang akan datang."
	MsgReminderFailed    = "Maaf, terjadi kesalahan saat memproses permintaan Anda."
	MsgReminderScheduled = "Pengingat berhasil dibuat"
	MsgGroupOnly         = "Perintah ini hanya dapat digunakan di dalam grup."
)

const helpText = "🤖 *BANTUAN PENGGUNAAN BOT PENGINGAT*\n\n" +
	"*Perintah yang tersedia:*\n" +
	"1. /set-meeting [tanggal] [waktu] [judul] - Menjadwalkan pertemuan\n" +
	"2. /list-meetings - Menampilkan pertemuan mendatang\n" +
	"3. /cancel-meeting [nomor|judul] - Membatalkan pertemuan\n" +
	"4. @bot /help - Menampilkan bantuan ini\n" +
	"5. @bot ingetin untuk [judul meeting] jam [waktu] tanggal [tanggal]\n\n" +
	"*Contoh penggunaan:*\n" +
	"/set-meeting 5 januari 19:00 Diskusi Project\n" +
	"@bot ingetin untuk meeting pak bon jam 2 tanggal 14 november 2025\n\n" +
	"*Catatan:*\n" +
	"- Pertemuan grup diingatkan sesuai pengaturan grup (default 30 menit sebelumnya)\n" +
	"- Pengingat pribadi dikirim 1 hari dan 30 menit sebelum jadwal\n" +
	"- Gunakan @ sebagai pengganti / bila perlu, misalnya @list-meetings"
